package mocks

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/specbuilder/internal/build"
	"git.home.luguber.info/inful/specbuilder/internal/config"
	"git.home.luguber.info/inful/specbuilder/internal/plugin"
	"git.home.luguber.info/inful/specbuilder/internal/plugins/client"
	"git.home.luguber.info/inful/specbuilder/internal/plugins/oas"
)

func setup(t *testing.T) (*config.Config, *oas.Plugin) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "oas", "testdata", "petstore.yaml"))
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Root = t.TempDir()
	cfg.Input.Path = "petstore.yaml"
	cfg.Output.Path = "gen"
	cfg.Output.Write = false
	return cfg, oas.New(oas.Options{}, oas.StaticLoader{Data: data}, nil)
}

func file(t *testing.T, res *build.Result, parts ...string) string {
	t.Helper()
	f, ok := res.File(filepath.Join(parts...))
	require.True(t, ok, "missing %s", filepath.Join(parts...))
	return f.Content()
}

func TestMocksImportClientFunctions(t *testing.T) {
	cfg, schema := setup(t)
	res, err := build.Build(context.Background(), build.Request{
		Config: cfg,
		Plugins: []plugin.Plugin{
			New(Options{GroupBy: &client.GroupBy{Type: "tag"}}, nil),
			schema,
			client.New(client.Options{GroupBy: &client.GroupBy{Type: "tag"}}, nil),
		},
	})
	require.NoError(t, err)

	order := make([]string, len(res.Registry.Order()))
	for i, p := range res.Registry.Order() {
		order[i] = p.Metadata().Key.String()
	}
	assert.Equal(t, []string{"schema/oas", "controller/client", "mocks"}, order)

	gen := filepath.Join(cfg.Root, "gen")
	src := file(t, res, gen, "mocks", "petController", "createGetPetById.ts")
	assert.Contains(t, src, `import type { getPetById } from "../../clients/petController/getPetById";`)
	assert.Contains(t, src, "export function createGetPetById(): Awaited<ReturnType<typeof getPetById>>")
	assert.Contains(t, src, `{ id: 0, name: "string", tags: ["string"], status: "available" }`)
	assert.Contains(t, src, "@description successful operation")

	del := file(t, res, gen, "mocks", "petController", "createDeletePet.ts")
	assert.Contains(t, del, "return undefined as never;")

	order2 := file(t, res, gen, "mocks", "storeController", "createGetOrderById.ts")
	assert.Contains(t, order2, "{ id: 0, complete: false }")

	// Client indexes stay inside the client output; the rest come from the build.
	mocksIndex, ok := res.File(filepath.Join(gen, "mocks", "petController", "index.ts"))
	require.True(t, ok)
	assert.Empty(t, mocksIndex.PluginKey())
	assert.Contains(t, mocksIndex.Content(), `export { createGetPetById } from "./createGetPetById";`)
	clientsIndex, ok := res.File(filepath.Join(gen, "clients", "petController", "index.ts"))
	require.True(t, ok)
	assert.Equal(t, "controller/client", clientsIndex.PluginKey())
	rootIndex, ok := res.File(filepath.Join(gen, "index.ts"))
	require.True(t, ok)
	assert.Empty(t, rootIndex.PluginKey())
}

func TestMocksWithoutController(t *testing.T) {
	cfg, schema := setup(t)
	res, err := build.Build(context.Background(), build.Request{
		Config:  cfg,
		Plugins: []plugin.Plugin{schema, New(Options{Output: "fixtures"}, nil)},
	})
	require.NoError(t, err)

	src := file(t, res, cfg.Root, "gen", "fixtures", "createAddPet.ts")
	assert.NotContains(t, src, "import")
	assert.Contains(t, src, "export function createAddPet() {")

	idx := file(t, res, cfg.Root, "gen", "fixtures", "index.ts")
	assert.Contains(t, idx, `export { createAddPet } from "./createAddPet";`)
}

func TestMockValueBoundsRecursion(t *testing.T) {
	doc := &oas.Document{Schemas: []oas.Schema{{
		Name:       "Node",
		Type:       "object",
		Properties: []oas.Property{{Name: "next", Ref: oas.SchemaRef{Name: "Node"}}},
	}}}
	out := mockValue(doc, &oas.SchemaRef{Name: "Node"}, 0)
	assert.Contains(t, out, "undefined")
	assert.Equal(t, `"x-y"`, jsKey("x-y"))
	assert.Equal(t, "id", jsKey("id"))
}
