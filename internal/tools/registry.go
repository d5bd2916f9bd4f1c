package tools

// ToolName is the canonical name of a built-in tool.
type ToolName string

const (
	ToolWebSearch    ToolName = "web_search"
	ToolCrawlWebsite ToolName = "crawl_website"
)
