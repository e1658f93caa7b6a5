// Package autoload registers all built-in worker backends via their init
// functions. Blank-import it from main.
package autoload

import (
	_ "switchboard/pkg/worker/gemini"
	_ "switchboard/pkg/worker/ollama"
	_ "switchboard/pkg/worker/openai"
	_ "switchboard/pkg/worker/process"
)
