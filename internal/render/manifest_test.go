package render

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mapchef/mapchef/internal/model"
)

func sampleOrders() []model.Order {
	refTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []model.Order{{
		Recipe:  "rh850",
		Flavour: "default",
		Mixer:   "default",
		Model:   "ifs",
		RefTime: refTime,
		Step:    12,
		Sources: map[string]model.Artifact{
			"rh850": {Input: "rh850", Path: "/work/rh850", Fingerprint: "abcd1234"},
		},
		Steps: []model.OrderStep{
			{Kind: "add_basemap", Args: map[string]interface{}{}},
			{Kind: "add_grib", Input: "rh850", Args: map[string]interface{}{"grib_scaling": 1}},
		},
	}}
}

func TestBuildManifest(t *testing.T) {
	m := BuildManifest("default", sampleOrders())
	assert.NotEmpty(t, m.RunID)
	assert.Equal(t, "default", m.Flavour)
	require.Len(t, m.Orders, 1)

	order := m.Orders[0]
	assert.Equal(t, "rh850+012", order.Basename)
	assert.Equal(t, "2024-01-01T00", order.RefTime)
	assert.Equal(t, "abcd1234", order.Sources["rh850"].Fingerprint)
	require.Len(t, order.Steps, 2)
	assert.Equal(t, "add_grib", order.Steps[1].Step)
	assert.Equal(t, "rh850", order.Steps[1].Input)
}

func TestWriteManifestFormats(t *testing.T) {
	dir := t.TempDir()
	m := BuildManifest("default", sampleOrders())

	jsonPath := filepath.Join(dir, "orders.json")
	require.NoError(t, WriteManifest(m, jsonPath))
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var fromJSON Manifest
	require.NoError(t, json.Unmarshal(data, &fromJSON))
	assert.Equal(t, m.RunID, fromJSON.RunID)

	yamlPath := filepath.Join(dir, "nested", "orders.yaml")
	require.NoError(t, WriteManifest(m, yamlPath))
	data, err = os.ReadFile(yamlPath)
	require.NoError(t, err)
	var fromYAML Manifest
	require.NoError(t, yaml.Unmarshal(data, &fromYAML))
	assert.Equal(t, "rh850+012", fromYAML.Orders[0].Basename)
}

func TestSummaryListsOrdersAndCounts(t *testing.T) {
	m := BuildManifest("default", sampleOrders())

	var buf bytes.Buffer
	Summary(&buf, m)
	out := buf.String()
	assert.Contains(t, out, "flavour default: 1 orders")
	assert.Contains(t, out, "rh850+012")
	assert.Contains(t, out, "1 order(s)")
}

func TestSummaryEmptyManifest(t *testing.T) {
	var buf bytes.Buffer
	Summary(&buf, BuildManifest("default", nil))
	assert.Contains(t, buf.String(), "no feasible orders")
}
