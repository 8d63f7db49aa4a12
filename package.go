// Comfyworkflow is a Go client for ComfyUI that gives API-format prompts named,
// stable handles. Nodes whose titles carry an input or output prefix
// ("INPUT_", "OUTPUT_" by default) can be addressed by name instead of by
// their numeric node ids, and rendered images are returned keyed by those names.
package comfyworkflow
