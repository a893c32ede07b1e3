// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package announce

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectives(t *testing.T) {
	dir := filepath.Join("out", "installed")
	got := Directives(dir)
	require.Len(t, got, 2)
	assert.Equal(t, Directive{Kind: LinkSearch, Path: filepath.Join(dir, "lib")}, got[0])
	assert.Equal(t, Directive{Kind: Include, Path: filepath.Join(dir, "include")}, got[1])
	assert.Equal(t, "link-search", got[0].Kind.String())
	assert.Equal(t, "include", got[1].Kind.String())
}

func TestAnnounce(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{FormatEnv, "CGO_LDFLAGS=-L/o/installed/lib\nCGO_CFLAGS=-I/o/installed/include\n"},
		{FormatShell, "export CGO_LDFLAGS='-L/o/installed/lib'\nexport CGO_CFLAGS='-I/o/installed/include'\n"},
		{FormatMake, "CGO_LDFLAGS += -L/o/installed/lib\nCGO_CFLAGS += -I/o/installed/include\n"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, New(tt.format).Announce(&buf, "/o/installed"))
			assert.Equal(t, filepath.FromSlash(tt.want), buf.String())
		})
	}
}

func TestAnnounceShellQuoting(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(FormatShell).Announce(&buf, "/it's here"))
	assert.True(t, strings.HasPrefix(buf.String(), `export CGO_LDFLAGS='-L/it'\''s here/lib'`))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestAnnounceWriterError(t *testing.T) {
	err := New(FormatEnv).Announce(failingWriter{}, "/o")
	assert.EqualError(t, err, "closed pipe")
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"env", "shell", "make"} {
		f, err := ParseFormat(s)
		require.NoError(t, err)
		assert.Equal(t, Format(s), f)
	}
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatEnv, f)

	_, err = ParseFormat("cargo")
	assert.ErrorContains(t, err, `unknown format "cargo"`)
}
