package naming

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCamelCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"get pet by id", "getPetById"},
		{"getPetByID", "getPetById"},
		{"FindPets", "findPets"},
		{"URLValue", "urlValue"},
		{"pet-store_v2", "petStoreV2"},
		{"$ref", "$ref"},
		{"123abc", "_123abc"},
		{"!!!", Placeholder},
		{"", Placeholder},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CamelCase(tt.in))
		})
	}
}

func TestPascalCase(t *testing.T) {
	assert.Equal(t, "FindPets", PascalCase("find pets"))
	assert.Equal(t, "GetPetById", PascalCase("getPetByID"))
	assert.Equal(t, Placeholder, PascalCase("--"))
}

func TestRenderTemplate(t *testing.T) {
	got := RenderTemplate("clients/{{tag}}Controller/{{ missing }}", map[string]string{"tag": "pet"})
	assert.Equal(t, "clients/petController/", got)
}

func TestModeOf(t *testing.T) {
	assert.Equal(t, ModeFile, ModeOf("gen/all.ts"))
	assert.Equal(t, ModeDirectory, ModeOf("gen/clients"))
	assert.Equal(t, ModeDirectory, ModeOf(""))
}

func TestResolvePathGrouping(t *testing.T) {
	root := filepath.FromSlash("/out")
	r := Resolver{Root: root, Template: "{{tag}}/ops", GroupBy: GroupByTag}

	grouped, err := r.ResolvePath("getPet.ts", PathOptions{Tag: "pet"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "pet", "ops", "getPet.ts"), grouped)

	ungrouped, err := r.ResolvePath("getPet.ts", PathOptions{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "getPet.ts"), ungrouped)
}

func TestResolvePathCamelCasesTag(t *testing.T) {
	r := Resolver{Root: "/out", Output: "clients", Template: "clients/{{tag}}Controller", GroupBy: GroupByTag}

	got, err := r.ResolvePath("addPet.ts", PathOptions{Tag: "Pet Store"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/out", "clients", "petStoreController", "addPet.ts"), got)

	// Without grouping enabled the tag is ignored.
	r.GroupBy = ""
	got, err = r.ResolvePath("addPet.ts", PathOptions{Tag: "pet"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/out", "clients", "addPet.ts"), got)
}

func TestResolvePathSingleFileOutput(t *testing.T) {
	r := Resolver{Root: "/out", Output: "api.ts", Template: "{{tag}}", GroupBy: GroupByTag}

	for _, tag := range []string{"", "pet", "store"} {
		got, err := r.ResolvePath("whatever.ts", PathOptions{Tag: tag})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/out", "api.ts"), got)
	}
}

func TestResolvePathRejectsEmptyBaseName(t *testing.T) {
	r := Resolver{Root: "/out"}

	_, err := r.ResolvePath("  ", PathOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnresolvedPath))

	var upe *UnresolvedPathError
	require.ErrorAs(t, err, &upe)

	_, err = r.ResolvePath(filepath.Join("a", "b.ts"), PathOptions{})
	require.ErrorIs(t, err, ErrUnresolvedPath)
}

func TestResolveNameTransform(t *testing.T) {
	r := Resolver{Transform: func(s string) string { return s + "Client" }}
	assert.Equal(t, "getPetClient", r.ResolveName("get-pet"))

	empty := Resolver{Transform: func(string) string { return "" }}
	assert.Equal(t, Placeholder, empty.ResolveName("get-pet"))
}
