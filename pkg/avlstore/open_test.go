package avlstore_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/michael9422/avl-file/pkg/avlstore"
)

func Test_Open_Rejects_Invalid_Options(t *testing.T) {
	base := avlstore.Options{DataLen: 4, KeyCount: 1, Compare: byteCompare}

	cases := []struct {
		name   string
		mutate func(avlstore.Options) avlstore.Options
	}{
		{"MissingPath", func(o avlstore.Options) avlstore.Options { o.Path = ""; return o }},
		{"ZeroKeyCount", func(o avlstore.Options) avlstore.Options { o.KeyCount = 0; return o }},
		{"NegativeDataLen", func(o avlstore.Options) avlstore.Options { o.DataLen = -1; return o }},
		{"NilCompare", func(o avlstore.Options) avlstore.Options { o.Compare = nil; return o }},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			opts := base
			opts.Path = filepath.Join(t.TempDir(), "test.avl")
			opts = c.mutate(opts)

			_, err := avlstore.Open(opts)
			require.ErrorIsf(t, err, avlstore.ErrInvalidArgument, "Open(%s)", c.name)
		})
	}
}

func Test_Open_Rejects_Reopen_With_Mismatched_KeyCount_Or_DataLen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.avl")

	h := mustOpen(t, avlstore.Options{Path: path, DataLen: 8, KeyCount: 2, Compare: byteCompare})
	require.NoError(t, h.Insert(make([]byte, 8)))
	require.NoError(t, h.Close())

	_, err := avlstore.Open(avlstore.Options{Path: path, DataLen: 8, KeyCount: 3, Compare: byteCompare})
	require.ErrorIs(t, err, avlstore.ErrIncompatible)

	_, err = avlstore.Open(avlstore.Options{Path: path, DataLen: 9, KeyCount: 2, Compare: byteCompare})
	require.ErrorIs(t, err, avlstore.ErrIncompatible)
}

func Test_Open_Reopens_An_Existing_File_And_Sees_Prior_Records(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.avl")

	buf := record(t, 4, 1, 1)

	h1 := mustOpen(t, avlstore.Options{Path: path, DataLen: 4, KeyCount: 1, Compare: byteCompare})
	require.NoError(t, h1.Insert(buf))
	require.NoError(t, h1.Close())

	h2 := mustOpen(t, avlstore.Options{Path: path, DataLen: 4, KeyCount: 1, Compare: byteCompare})

	var report avlstore.ScanReport
	_, err := h2.Scan(0, &report)
	require.NoError(t, err)
	require.EqualValues(t, 1, report.LiveCount)

	got := append([]byte(nil), buf...)
	found, err := h2.Find(got, 0)
	require.NoError(t, err)
	require.True(t, found)
}
