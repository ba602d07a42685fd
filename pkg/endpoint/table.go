// Package endpoint maps logical model names to versioned endpoint paths.
//
// Resolution is case-insensitive and layered: an explicit per-call
// override wins, then a lazily fetched dynamic overlay, then the static
// default table. The overlay is best-effort; fetch failures fall back to
// the static table silently.
package endpoint

import (
	"strings"

	"github.com/qianfan-go/qianfan/pkg/api"
)

// Descriptor describes one resolvable model endpoint.
type Descriptor struct {
	Type api.ModelType
	// Key is the lowercased model name used for lookup.
	Key string
	// Path is the path fragment appended to the versioned API prefix.
	Path string
	// Dynamic marks entries that came from the fetched overlay rather
	// than static configuration.
	Dynamic bool
}

// Table is a read-only endpoint lookup keyed by (model type, lowercase
// model name). Build it up front; it is not safe to mutate concurrently
// with lookups.
type Table struct {
	entries map[api.ModelType]map[string]string
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[api.ModelType]map[string]string)}
}

// Add registers a path for a model name. The name is lowercased, so later
// lookups match any casing.
func (t *Table) Add(typ api.ModelType, name, path string) {
	byName, ok := t.entries[typ]
	if !ok {
		byName = make(map[string]string)
		t.entries[typ] = byName
	}
	byName[strings.ToLower(name)] = path
}

// Lookup finds the path for a (type, name) pair, case-insensitively.
func (t *Table) Lookup(typ api.ModelType, name string) (string, bool) {
	byName, ok := t.entries[typ]
	if !ok {
		return "", false
	}
	path, ok := byName[strings.ToLower(name)]
	return path, ok
}

// DefaultTable returns the built-in endpoint catalog. It seeds the common
// hosted models; deployments extend it through configuration or rely on
// the dynamic overlay for newer models.
func DefaultTable() *Table {
	t := NewTable()

	t.Add(api.ModelTypeChat, "ERNIE-Bot", "/chat/completions")
	t.Add(api.ModelTypeChat, "ERNIE-Bot-turbo", "/chat/eb-instant")
	t.Add(api.ModelTypeChat, "ERNIE-Bot-4", "/chat/completions_pro")
	t.Add(api.ModelTypeChat, "ERNIE-3.5-8K", "/chat/completions")
	t.Add(api.ModelTypeChat, "ERNIE-Speed-8K", "/chat/ernie_speed")
	t.Add(api.ModelTypeChat, "BLOOMZ-7B", "/chat/bloomz_7b1")
	t.Add(api.ModelTypeChat, "Llama-2-7B-Chat", "/chat/llama_2_7b")
	t.Add(api.ModelTypeChat, "Llama-2-13B-Chat", "/chat/llama_2_13b")

	t.Add(api.ModelTypeCompletion, "SQLCoder-7B", "/completions/sqlcoder_7b")
	t.Add(api.ModelTypeCompletion, "CodeLlama-7B-Instruct", "/completions/codellama_7b_instruct")

	t.Add(api.ModelTypeEmbedding, "Embedding-V1", "/embeddings/embedding-v1")
	t.Add(api.ModelTypeEmbedding, "bge-large-zh", "/embeddings/bge_large_zh")
	t.Add(api.ModelTypeEmbedding, "bge-large-en", "/embeddings/bge_large_en")
	t.Add(api.ModelTypeEmbedding, "tao-8k", "/embeddings/tao_8k")

	t.Add(api.ModelTypeReranker, "bce-reranker-base", "/reranker/bce_reranker_base")

	t.Add(api.ModelTypeText2Image, "Stable-Diffusion-XL", "/text2image/sd_xl")

	return t
}
