package mcp

import "github.com/mark3labs/mcp-go/mcp"

var runToolDef = mcp.NewTool("capture_run",
	mcp.WithDescription("Capture every AOT compiler invocation of a build trace into a replayable zip archive and record it in the index."),
	mcp.WithString("trace_path", mcp.Required(), mcp.Description("Path to the JSON build trace")),
	mcp.WithString("output_path", mcp.Description("Archive path ending in .zip; defaults to the captures directory")),
	mcp.WithDestructiveHintAnnotation(false),
)

var inspectToolDef = mcp.NewTool("capture_inspect",
	mcp.WithDescription("Reconstruct the tasks of a build trace and render the replay project without writing an archive."),
	mcp.WithString("trace_path", mcp.Required(), mcp.Description("Path to the JSON build trace")),
	mcp.WithBoolean("include_project", mcp.Description("Include the rendered replay project text (default true)")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var listToolDef = mcp.NewTool("capture_list",
	mcp.WithDescription("List recorded captures, newest first."),
	mcp.WithString("flavor", mcp.Description("Only captures of this build flavor")),
	mcp.WithNumber("limit", mcp.Description("Maximum items to return (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Pagination offset")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var getToolDef = mcp.NewTool("capture_get",
	mcp.WithDescription("Fetch one recorded capture by id."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Capture id")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var deleteToolDef = mcp.NewTool("capture_delete",
	mcp.WithDescription("Remove a capture from the index. The archive file is kept."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Capture id")),
	mcp.WithDestructiveHintAnnotation(true),
)

var reportToolDef = mcp.NewTool("capture_report",
	mcp.WithDescription("Render a Markdown or HTML report of a build trace or a recorded capture."),
	mcp.WithString("trace_path", mcp.Description("Path to the JSON build trace")),
	mcp.WithString("id", mcp.Description("Recorded capture id; used instead of trace_path")),
	mcp.WithString("format", mcp.Enum("markdown", "html"), mcp.Description("Report format (default markdown)")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var tokenizeToolDef = mcp.NewTool("aot_tokenize",
	mcp.WithDescription("Split a Mono --aot option string into its options, honoring quotes."),
	mcp.WithString("options", mcp.Required(), mcp.Description("Comma-separated option string")),
	mcp.WithReadOnlyHintAnnotation(true),
)
