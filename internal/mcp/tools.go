package mcp

import "github.com/mark3labs/mcp-go/mcp"

// composeDocumentTool defines the compose_document MCP tool.
var composeDocumentTool = mcp.NewTool("compose_document",
	mcp.WithDescription("Combine html, css and js sources into one self-contained HTML document as the live preview would render it."),
	mcp.WithString("html", mcp.Description("Markup placed in the document body")),
	mcp.WithString("css", mcp.Description("Stylesheet placed in a style block")),
	mcp.WithString("js", mcp.Description("Script run after the markup, wrapped in an error boundary")),
	mcp.WithBoolean("standalone",
		mcp.Description("Produce the full exported document with doctype and head (default false)"),
	),
)

// extractCodeBlocksTool defines the extract_code_blocks MCP tool.
var extractCodeBlocksTool = mcp.NewTool("extract_code_blocks",
	mcp.WithDescription("Route fenced code blocks from markdown text into html, css and js buffers. Languages without a block are omitted."),
	mcp.WithString("content",
		mcp.Required(),
		mcp.Description("Markdown text, typically an AI reply"),
	),
)

// renderHeadlessTool defines the render_headless MCP tool.
var renderHeadlessTool = mcp.NewTool("render_headless",
	mcp.WithDescription("Compose the sources, run the document's scripts in an in-process runtime and report title, visible text, console output and errors."),
	mcp.WithString("html", mcp.Description("Markup placed in the document body")),
	mcp.WithString("css", mcp.Description("Stylesheet")),
	mcp.WithString("js", mcp.Description("Script")),
	mcp.WithString("pen_id", mcp.Description("Render a saved pen instead of the given sources")),
)

// listTemplatesTool defines the list_templates MCP tool.
var listTemplatesTool = mcp.NewTool("list_templates",
	mcp.WithDescription("List the starter templates with their sources."),
	mcp.WithString("category",
		mcp.Description("Only return templates in this category"),
		mcp.Enum("frontend", "component", "animation", "layout", "interactive"),
	),
)

// getPenTool defines the get_pen MCP tool.
var getPenTool = mcp.NewTool("get_pen",
	mcp.WithDescription("Fetch a saved pen with its html, css and js."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Pen ID"),
	),
)
