package app

import (
	"os"

	"github.com/Hubmakerlabs/mockrelay/pkg/slog"
)

var log, chk = slog.New(os.Stderr)
