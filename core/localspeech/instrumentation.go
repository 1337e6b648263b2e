package localspeech

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/koscakluka/ema-playback/core/localspeech"

var logger = otelslog.NewLogger(scopeName)
