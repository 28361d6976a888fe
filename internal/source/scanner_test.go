package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapchef/mapchef/internal/model"
)

func writeSpool(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestScanReadsSidecars(t *testing.T) {
	dir := t.TempDir()
	writeSpool(t, dir, "t850.grib", "payload")
	writeSpool(t, dir, "t850.meta.yaml", `
model: ifs
reftime: "2024-01-01T00"
step: 12
data: t850.grib
meta:
  shortName: t
  level: "850"
`)

	records, err := NewScanner(dir, nil).Scan()
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "ifs", rec.Model)
	assert.Equal(t, "2024-01-01T00", rec.RefTime.Format(model.RefTimeLayout))
	assert.Equal(t, 12, rec.Step)
	assert.Equal(t, filepath.Join(dir, "t850.grib"), rec.Path)
	assert.Equal(t, map[string]string{"shortName": "t", "level": "850"}, rec.Meta)
}

func TestScanSkipsMalformedSidecars(t *testing.T) {
	dir := t.TempDir()

	// Well-formed record amid the noise.
	writeSpool(t, dir, "good.grib", "payload")
	writeSpool(t, dir, "good.meta.yaml", "model: ifs\nreftime: \"2024-01-01T00\"\nstep: 0\ndata: good.grib\n")

	// Broken yaml.
	writeSpool(t, dir, "broken.meta.yaml", "model: [unclosed\n")
	// Missing data file.
	writeSpool(t, dir, "orphan.meta.yaml", "model: ifs\nreftime: \"2024-01-01T00\"\nstep: 0\ndata: orphan.grib\n")
	// Missing model.
	writeSpool(t, dir, "nomodel.meta.yaml", "reftime: \"2024-01-01T00\"\nstep: 0\ndata: good.grib\n")
	// Bad reftime.
	writeSpool(t, dir, "badtime.meta.yaml", "model: ifs\nreftime: noon\nstep: 0\ndata: good.grib\n")
	// Not a sidecar at all.
	writeSpool(t, dir, "README.txt", "nothing to see")

	records, err := NewScanner(dir, nil).Scan()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, filepath.Join(dir, "good.grib"), records[0].Path)
}

func TestScanIsSortedAndRecursive(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "cosmo")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	writeSpool(t, dir, "b.grib", "b")
	writeSpool(t, dir, "b.meta.yaml", "model: ifs\nreftime: \"2024-01-01T00\"\nstep: 24\ndata: b.grib\n")
	writeSpool(t, sub, "a.grib", "a")
	writeSpool(t, sub, "a.meta.yaml", "model: cosmo\nreftime: \"2024-01-01T00\"\nstep: 0\ndata: a.grib\n")

	records, err := NewScanner(dir, nil).Scan()
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Sorted by sidecar path: dir/b.meta.yaml before dir/cosmo/a.meta.yaml.
	assert.Equal(t, "ifs", records[0].Model)
	assert.Equal(t, "cosmo", records[1].Model)
}

func TestScanMissingSpoolDirFails(t *testing.T) {
	_, err := NewScanner(filepath.Join(t.TempDir(), "absent"), nil).Scan()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan spool")
}
