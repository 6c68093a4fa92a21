package app

import (
	"github.com/vk/tileqc/internal/registry"
	"github.com/vk/tileqc/modules/pedestalnorm"
	"github.com/vk/tileqc/modules/pedestalscan"
	"github.com/vk/tileqc/modules/slowcontrol"
)

// coreModules is the definitive list of calibration procedures compiled into
// the tileqc binary. The order here is the order procedures appear in
// listings and GUIs.
var coreModules = []registry.Module{
	&pedestalscan.Module{},
	&pedestalnorm.Module{},
	&slowcontrol.Module{},
}
