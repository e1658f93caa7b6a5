// Package autoload registers all built-in adapter factories. Import it for
// side effects from the program entry point.
package autoload

import (
	_ "switchboard/pkg/adapters/telegram"
	_ "switchboard/pkg/adapters/web"
)
