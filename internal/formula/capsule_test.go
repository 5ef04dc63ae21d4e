package formula

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warpsys/warpforge/internal/ordmap"
	"github.com/warpsys/warpforge/internal/wareid"
)

// literalExample is the round-trip seed from spec.md §6.1.
const literalExample = `{"formula":{"formula.v1":{
  "image":{"reference":"docker.io/busybox:latest","readonly":true},
  "inputs":{
    "/":"ware:tar:4z9DCTxoKkStqXQRwtf9nimpfQQ36dbndDsAPCQgECfbXt3edanUrsVKCjE9TkX2v9",
    "/some/ro/path":"mount:ro:/host/readonly/path",
    "/some/rw/path":"mount:rw:/host/readwrite/path",
    "/some/overlay/path":"mount:overlay:/host/overlay/path"},
  "action":{"exec":{"command":["/bin/sh","-c","echo hello from warpforge!"]}},
  "outputs":{}}},
 "context":{"context.v1":{"warehouses":{
  "tar:4z9DCTxoKkStqXQRwtf9nimpfQQ36dbndDsAPCQgECfbXt3edanUrsVKCjE9TkX2v9":
  "https://warpsys.s3.amazonaws.com/warehouse/4z9/DCT/4z9DCTxoKkStqXQRwtf9nimpfQQ36dbndDsAPCQgECfbXt3edanUrsVKCjE9TkX2v9"}}}}`

func TestLiteralExampleParses(t *testing.T) {
	var fc AndContext
	require.NoError(t, json.Unmarshal([]byte(literalExample), &fc))

	require.Equal(t, "docker.io/busybox:latest", fc.Formula.Image.Reference)
	assert.True(t, fc.Formula.Image.Readonly)
	require.Equal(t, 4, fc.Formula.Inputs.Len())

	rootIn, ok := fc.Formula.Inputs.Get("/")
	require.True(t, ok)
	require.NotNil(t, rootIn.Ware)
	assert.Equal(t, wareid.WareID("tar:4z9DCTxoKkStqXQRwtf9nimpfQQ36dbndDsAPCQgECfbXt3edanUrsVKCjE9TkX2v9"), *rootIn.Ware)

	roIn, ok := fc.Formula.Inputs.Get("/some/ro/path")
	require.True(t, ok)
	require.NotNil(t, roIn.Mount)
	assert.Equal(t, MountReadOnly, roIn.Mount.Kind)
	assert.Equal(t, "/host/readonly/path", roIn.Mount.HostPath)

	require.NotNil(t, fc.Formula.Action.Exec)
	assert.Equal(t, []string{"/bin/sh", "-c", "echo hello from warpforge!"}, fc.Formula.Action.Exec.Command)

	require.NotNil(t, fc.Context)
	addr, ok := fc.Context.Warehouses.Get("tar:4z9DCTxoKkStqXQRwtf9nimpfQQ36dbndDsAPCQgECfbXt3edanUrsVKCjE9TkX2v9")
	require.True(t, ok)
	assert.Equal(t, wareid.WarehouseAddr("https://warpsys.s3.amazonaws.com/warehouse/4z9/DCT/4z9DCTxoKkStqXQRwtf9nimpfQQ36dbndDsAPCQgECfbXt3edanUrsVKCjE9TkX2v9"), addr)
}

// TestLiteralExampleReemitsVerbatim checks the other half of the round-trip
// invariant, emit(parse(s)) == s modulo whitespace: every ordered map
// must reproduce the source document's key order byte for byte once both
// sides are whitespace-compacted.
func TestLiteralExampleReemitsVerbatim(t *testing.T) {
	var fc AndContext
	require.NoError(t, json.Unmarshal([]byte(literalExample), &fc))

	emitted, err := json.Marshal(fc)
	require.NoError(t, err)

	var compacted bytes.Buffer
	require.NoError(t, json.Compact(&compacted, []byte(literalExample)))
	assert.Equal(t, compacted.String(), string(emitted))
}

// TestRoundTrip checks parse(emit(d)) == d for a hand-built FormulaAndContext,
// the invariant from spec.md §8.
func TestRoundTrip(t *testing.T) {
	network := true
	inputs := ordmap.New[FormulaInput]()
	inputs.Set("/", WareInput(wareid.New("tar", "abc")))
	inputs.Set("$HOME", LiteralInput("/root"))
	outputs := ordmap.New[GatherDirective]()
	outputs.Set("out", GatherDirective{From: "/outputs/out"})

	f := &Formula{
		Image:   Image{Reference: "docker.io/busybox:latest", Readonly: true},
		Inputs:  inputs,
		Action:  Action{Exec: &ExecuteAction{Command: []string{"/bin/sh", "-c", "echo hi"}, Network: &network}},
		Outputs: outputs,
	}
	ctx := NewContext()
	ctx.Warehouses.Set("tar:abc", wareid.WarehouseAddr("https://example.test/abc"))

	original := AndContext{Formula: f, Context: ctx}
	emitted, err := json.Marshal(original)
	require.NoError(t, err)

	var parsed AndContext
	require.NoError(t, json.Unmarshal(emitted, &parsed))

	reemitted, err := json.Marshal(parsed)
	require.NoError(t, err)
	assert.JSONEq(t, string(emitted), string(reemitted))
}
