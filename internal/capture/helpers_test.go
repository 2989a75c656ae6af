package capture

import (
	"errors"

	"github.com/dashcamv2/control-go/internal/logging"
)

var assertErr = errors.New("boom")

func testLogger() *logging.Logger {
	return logging.NewLogger("capture-test")
}
