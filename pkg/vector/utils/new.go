// Package vectorutils constructs vector indexes from provider configuration.
package vectorutils

import (
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/quillworksco/folio/pkg/embeddings"
	"github.com/quillworksco/folio/pkg/vector"
	"github.com/quillworksco/folio/pkg/vector/chroma"
	"github.com/quillworksco/folio/pkg/vector/qdrantidx"
	"github.com/quillworksco/folio/pkg/vector/sqlitevec"
)

type NewIndexOpts struct {
	ProviderType string
	// TargetURL is provider-specific: a base URL for chroma, host:port for
	// qdrant, a file path for sqlitevec.
	TargetURL  string
	Dimensions uint
	Embedder   embeddings.Embedder
	Logger     *zap.Logger
}

func NewIndex(o *NewIndexOpts) (vector.Index, error) {
	switch o.ProviderType {
	case "chroma":
		return chroma.NewIndex(chroma.Config{
			URL: o.TargetURL,
		}, o.Embedder, o.Logger)
	case "qdrant":
		host, port, err := splitHostPort(o.TargetURL)
		if err != nil {
			return nil, fmt.Errorf("parsing qdrant target: %w", err)
		}
		return qdrantidx.NewIndex(qdrantidx.Config{
			Host:       host,
			Port:       port,
			Dimensions: uint64(o.Dimensions),
		}, o.Embedder, o.Logger)
	case "sqlitevec":
		return sqlitevec.NewIndex(sqlitevec.Config{
			DBPath:     o.TargetURL,
			Dimensions: o.Dimensions,
		}, o.Embedder, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}

// splitHostPort parses "host", "host:port", or a URL-shaped target into a
// host and port pair. Port zero lets the provider apply its default.
func splitHostPort(target string) (string, int, error) {
	if target == "" {
		return "", 0, nil
	}

	u, err := url.Parse("//" + target)
	if err != nil {
		return "", 0, fmt.Errorf("invalid target %q: %w", target, err)
	}

	port := 0
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, fmt.Errorf("invalid port in target %q: %w", target, err)
		}
	}
	return u.Hostname(), port, nil
}
