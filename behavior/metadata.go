package behavior

import "context"

// metadataKey is the context key for request metadata.
type metadataKey struct{}

// Metadata holds transport-level values associated with a request,
// typically HTTP headers such as Authorization.
type Metadata map[string]string

// ContextWithMetadata returns a new context with the metadata attached.
func ContextWithMetadata(ctx context.Context, md Metadata) context.Context {
	return context.WithValue(ctx, metadataKey{}, md)
}

// MetadataFromContext returns the metadata from the context.
// Returns nil if no metadata is present.
func MetadataFromContext(ctx context.Context) Metadata {
	if md, ok := ctx.Value(metadataKey{}).(Metadata); ok {
		return md
	}
	return nil
}

// GetMetadata returns a specific metadata value from the context.
func GetMetadata(ctx context.Context, key string) string {
	return MetadataFromContext(ctx)[key]
}

// SetMetadata returns a context with key set, leaving the parent's map untouched.
func SetMetadata(ctx context.Context, key, value string) context.Context {
	old := MetadataFromContext(ctx)
	md := make(Metadata, len(old)+1)
	for k, v := range old {
		md[k] = v
	}
	md[key] = value
	return ContextWithMetadata(ctx, md)
}
