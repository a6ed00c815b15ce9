package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemplate(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestBuiltins(t *testing.T) {
	c := Builtins()

	assert.Equal(t, []string{TypeChemistry, TypeHematology, TypeImmunology, TypeMicrobiology}, c.Types())
	assert.Equal(t, 4, c.Len())

	for _, typ := range c.Types() {
		tpl := c.Get(typ)
		require.NotNil(t, tpl, "type %s", typ)
		require.NoError(t, tpl.Validate(), "type %s", typ)
		assert.Equal(t, typ, tpl.Type(), "type %s", typ)
	}

	hema := c.Get(TypeHematology)
	assert.Equal(t, "Sysmex^XN-1000^V1.0", hema.ASTMIdentity())
	require.Len(t, hema.Fields, 5)
	assert.Equal(t, "WBC", hema.Fields[0].Code)
	assert.Equal(t, "PLT", hema.Fields[4].Code)

	chem := c.Get(TypeChemistry)
	assert.Equal(t, "Beckman^AU5800^V2.1", chem.ASTMIdentity())
	assert.Len(t, chem.Fields, 6)
}

func TestBuiltins_Isolated(t *testing.T) {
	a := Builtins()
	b := Builtins()

	a.Get(TypeHematology).Fields[0].Unit = "mutated"
	assert.Equal(t, "10*3/uL", b.Get(TypeHematology).Fields[0].Unit,
		"catalogs must not share template data")
}

func TestCatalog_Get_CaseInsensitive(t *testing.T) {
	c := Builtins()

	assert.Same(t, c.Get("HEMATOLOGY"), c.Get("hematology"))
	assert.Same(t, c.Get("HEMATOLOGY"), c.Get("Hematology"))
}

func TestCatalog_Get_FallsBackToFirst(t *testing.T) {
	c := Builtins()

	tpl := c.Get("URINALYSIS")
	require.NotNil(t, tpl)
	assert.Equal(t, TypeChemistry, tpl.Type(), "fallback must pick the first type in sorted order")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	writeTemplate(t, dir, "hematology.json", `{
		"analyzer": {"type": "HEMATOLOGY", "name": "Horiba Micros 60", "manufacturer": "Horiba", "model": "Micros 60"},
		"fields": [{"name": "WBC", "code": "WBC", "type": "NUMERIC", "unit": "10*3/uL", "normalRange": "4.0-10.0"}]
	}`)
	writeTemplate(t, dir, "urinalysis.json", `{
		"analyzer": {"name": "Clinitek Novus"},
		"fields": [{"name": "GLU", "code": "GLU", "type": "QUALITATIVE", "possibleValues": ["NEGATIVE", "TRACE", "POSITIVE"]}]
	}`)
	writeTemplate(t, dir, "schema.json", `{"$schema": "http://json-schema.org/draft-07/schema#"}`)
	writeTemplate(t, dir, "notes.txt", "not a template")

	c, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t,
		[]string{TypeChemistry, TypeHematology, TypeImmunology, TypeMicrobiology, "URINALYSIS"},
		c.Types())

	hema := c.Get(TypeHematology)
	assert.Equal(t, "Horiba Micros 60", hema.Analyzer.Name, "file template must replace the builtin")
	require.Len(t, hema.Fields, 1)

	uri := c.Get("urinalysis")
	assert.Equal(t, "URINALYSIS", uri.Type(), "type key must come from the file name when analyzer.type is unset")
	assert.Equal(t, "Clinitek Novus", uri.Analyzer.Name)
}

func TestLoad_MissingDir(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Equal(t, 4, c.Len())

	c, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, 4, c.Len())
}

func TestLoad_RejectsBadTemplates(t *testing.T) {
	t.Run("invalid json", func(t *testing.T) {
		dir := t.TempDir()
		writeTemplate(t, dir, "broken.json", `{"analyzer": `)

		_, err := Load(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken.json")
	})

	t.Run("fails validation", func(t *testing.T) {
		dir := t.TempDir()
		writeTemplate(t, dir, "nofields.json", `{"analyzer": {"name": "Empty"}, "fields": []}`)

		_, err := Load(dir)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidTemplate)
	})
}
