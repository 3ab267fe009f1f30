package anthropic

// BuildCachedSystemBlocks wraps a run-wide system prompt in a single block
// carrying a 1h cache breakpoint.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: "1h",
			},
		},
	}
}
