package anthropic

// BuildCachedSystemBlocks constructs a single system block with an ephemeral
// cache breakpoint. An empty ttl uses the API default (5 minutes).
func BuildCachedSystemBlocks(text, ttl string) []SystemBlock {
	return []SystemBlock{
		{
			Text:         text,
			CacheControl: &CacheControl{TTL: ttl},
		},
	}
}
