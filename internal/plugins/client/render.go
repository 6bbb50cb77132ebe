package client

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/specbuilder/internal/filegraph"
	"git.home.luguber.info/inful/specbuilder/internal/naming"
	"git.home.luguber.info/inful/specbuilder/internal/plugins/oas"
)

var pathParamPattern = regexp.MustCompile(`\{([^}]+)\}`)

// tsType maps an OpenAPI primitive onto a TypeScript type.
func tsType(t string) string {
	switch t {
	case "integer", "number":
		return "number"
	case "boolean":
		return "boolean"
	case "array":
		return "unknown[]"
	case "object":
		return "Record<string, unknown>"
	default:
		return "string"
	}
}

// RelativeImport returns the module specifier of target seen from dir.
func RelativeImport(dir, target string) string {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return filepath.ToSlash(target)
	}
	rel = filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))
	if !strings.HasPrefix(rel, ".") {
		rel = "./" + rel
	}
	return rel
}

func importSource(path string) filegraph.Source {
	return filegraph.Source{
		Value:   fmt.Sprintf("import client from %q;", path),
		Imports: []filegraph.Import{{Names: []string{"client"}, Path: path}},
	}
}

func operationSource(op oas.Operation, name, dataReturnType string) filegraph.Source {
	var b strings.Builder

	b.WriteString("/**\n")
	if op.Description != "" {
		fmt.Fprintf(&b, " * @description %s\n", op.Description)
	}
	if op.Summary != "" {
		fmt.Fprintf(&b, " * @summary %s\n", op.Summary)
	}
	if op.Deprecated {
		b.WriteString(" * @deprecated\n")
	}
	fmt.Fprintf(&b, " * @link %s\n", op.Path)
	b.WriteString(" */\n")

	var args []string
	for _, p := range op.PathParams() {
		args = append(args, fmt.Sprintf("%s: %s", naming.CamelCase(p.Name), tsType(p.Type)))
	}
	if op.RequestBody != nil {
		args = append(args, "data: TVariables")
	}
	if len(op.QueryParams()) > 0 {
		args = append(args, "params?: Record<string, unknown>")
	}

	url := pathParamPattern.ReplaceAllStringFunc(op.Path, func(m string) string {
		return "${" + naming.CamelCase(m[1:len(m)-1]) + "}"
	})

	fmt.Fprintf(&b, "export async function %s<TData = unknown, TVariables = unknown>(%s) {\n", name, strings.Join(args, ", "))
	b.WriteString("  const res = await client<TData, TVariables>({\n")
	fmt.Fprintf(&b, "    method: %q,\n", op.Method)
	fmt.Fprintf(&b, "    url: `%s`,\n", url)
	if len(op.QueryParams()) > 0 {
		b.WriteString("    params,\n")
	}
	if op.RequestBody != nil {
		b.WriteString("    data,\n")
	}
	b.WriteString("  });\n")
	if dataReturnType == "full" {
		b.WriteString("  return res;\n")
	} else {
		b.WriteString("  return res.data;\n")
	}
	b.WriteString("}")

	return filegraph.Source{Value: b.String(), Name: name, Exportable: true}
}

// clientSources is the body of the injected client.ts.
func clientSources(baseURL string) []filegraph.Source {
	return []filegraph.Source{
		{
			Value:      fmt.Sprintf("export const baseURL = %q;", baseURL),
			Name:       "baseURL",
			Exportable: true,
		},
		{
			Value: `export type RequestConfig<TVariables = unknown> = {
  method: string;
  url: string;
  params?: Record<string, unknown>;
  data?: TVariables;
  headers?: Record<string, string>;
};`,
			Name:       "RequestConfig",
			Exportable: true,
			TypeOnly:   true,
		},
		{
			Value: `export type ResponseConfig<TData = unknown> = {
  data: TData;
  status: number;
  headers: Headers;
};`,
			Name:       "ResponseConfig",
			Exportable: true,
			TypeOnly:   true,
		},
		{
			Value: `export default async function client<TData, TVariables = unknown>(
  config: RequestConfig<TVariables>,
): Promise<ResponseConfig<TData>> {
  const url = new URL(baseURL + config.url);
  for (const [key, value] of Object.entries(config.params ?? {})) {
    if (value !== undefined) url.searchParams.set(key, String(value));
  }
  const res = await fetch(url, {
    method: config.method.toUpperCase(),
    headers: { "Content-Type": "application/json", ...config.headers },
    body: config.data === undefined ? undefined : JSON.stringify(config.data),
  });
  const data = res.status === 204 ? undefined : await res.json();
  return { data: data as TData, status: res.status, headers: res.headers };
}`,
		},
	}
}
