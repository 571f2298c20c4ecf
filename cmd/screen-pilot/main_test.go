package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	screenpilot "github.com/menta2k/screen-pilot"
	"github.com/menta2k/screen-pilot/internal/config"
	"github.com/menta2k/screen-pilot/pkg/types"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionFlag(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, screenpilot.Version+"\n", out)
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pilot.yaml")

	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	_, err = execute(t, "config", "init", path)
	assert.ErrorContains(t, err, "already exists")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	cfg.Hunt.Level = 17
	require.NoError(t, cfg.SaveToFile(path))

	out, err = execute(t, "--config", path, "config", "show")
	require.NoError(t, err)
	var shown config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, 17, shown.Hunt.Level)
}

func TestBadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fleet:\n  cost: 0\n"), 0644))
	_, err := execute(t, "--config", path, "config", "show")
	assert.ErrorContains(t, err, "fleet.cost")
}

func TestGatherRejectsHuntCategory(t *testing.T) {
	_, err := execute(t, "gather", "--category", "hunt")
	assert.ErrorContains(t, err, "gather.category")
}

func TestEliteRejectsNegativeMax(t *testing.T) {
	_, err := execute(t, "elite", "--max", "-1")
	assert.ErrorContains(t, err, "elite.max_battles")
}

func TestLocateRequiresFlags(t *testing.T) {
	_, err := execute(t, "locate", "--target", "radar")
	assert.ErrorContains(t, err, "frame")
}

func TestParseBox(t *testing.T) {
	box, err := parseBox("10, 20,110,70")
	require.NoError(t, err)
	assert.Equal(t, types.Box(10, 20, 110, 70), box)

	for _, bad := range []string{"1,2,3", "a,b,c,d", "5,5,5,5", "9,9,1,1"} {
		_, err := parseBox(bad)
		assert.Error(t, err, bad)
	}
}
