package viewport

import (
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tabshell/internal/domain/navigation"
	"github.com/GriffinCanCode/tabshell/internal/shared/id"
)

// Signals receives terminal load results. session.Manager implements it.
// ep is the episode the matching Load was handed.
type Signals interface {
	LoadComplete(tab id.TabID, ep navigation.Episode) error
	LoadFailed(tab id.TabID, ep navigation.Episode) error
}

// deliver reports the outcome of one load to sink. loadErr nil means the
// load finished.
func deliver(sink Signals, tab id.TabID, ep navigation.Episode, loadErr error, logger *zap.Logger) {
	var err error
	if loadErr != nil {
		err = sink.LoadFailed(tab, ep)
	} else {
		err = sink.LoadComplete(tab, ep)
	}
	if err != nil {
		logger.Debug("Load signal dropped",
			zap.String("tab", tab.String()),
			zap.Uint64("episode", uint64(ep)),
			zap.Error(err))
	}
}
