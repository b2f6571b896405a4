package anthropic

// BuildCachedSystemBlocks returns the system prompt as a single block with an
// ephemeral cache breakpoint. Stage instructions are identical across
// customers, so consecutive runs read them from the prompt cache.
func BuildCachedSystemBlocks(text, ttl string) []SystemBlock {
	if text == "" {
		return nil
	}
	return []SystemBlock{
		{
			Text:         text,
			CacheControl: &CacheControl{TTL: ttl},
		},
	}
}
