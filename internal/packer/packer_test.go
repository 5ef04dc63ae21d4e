package packer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackOutputsProducesDigestsInOrder(t *testing.T) {
	srcA := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcA, "a.txt"), []byte("hello"), 0o644))
	srcB := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcB, "b.txt"), []byte("world"), 0o644))

	dest := t.TempDir()
	outputs, err := PackOutputs(dest, []IntermediateOutput{
		{Name: "first", HostPath: srcA, Packtype: OutputPacktypeTar},
		{Name: "second", HostPath: srcB, Packtype: OutputPacktypeTar},
	})
	require.NoError(t, err)
	require.Len(t, outputs, 2)

	assert.Equal(t, "first", outputs[0].Name)
	assert.Equal(t, "second", outputs[1].Name)
	assert.Regexp(t, `^sha384:[0-9a-f]{96}$`, outputs[0].Digest)
	assert.Regexp(t, `^sha384:[0-9a-f]{96}$`, outputs[1].Digest)
	assert.NotEqual(t, outputs[0].Digest, outputs[1].Digest)

	assert.FileExists(t, filepath.Join(dest, "first.tar"))
	assert.FileExists(t, filepath.Join(dest, "second.tar"))
}

func TestPackOutputsDeterministic(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "z.txt"), []byte("same"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("same"), 0o644))

	dest1 := t.TempDir()
	out1, err := PackOutputs(dest1, []IntermediateOutput{{Name: "out", HostPath: src, Packtype: OutputPacktypeTar}})
	require.NoError(t, err)

	dest2 := t.TempDir()
	out2, err := PackOutputs(dest2, []IntermediateOutput{{Name: "out", HostPath: src, Packtype: OutputPacktypeTar}})
	require.NoError(t, err)

	assert.Equal(t, out1[0].Digest, out2[0].Digest)
}

func TestPackOutputsRejectsUnsupportedPacktype(t *testing.T) {
	_, err := PackOutputs(t.TempDir(), []IntermediateOutput{
		{Name: "bad", HostPath: t.TempDir(), Packtype: "zip"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported pack format")
}
