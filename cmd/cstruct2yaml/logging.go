package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cstruct2yaml/pkg/analyze"
	"cstruct2yaml/pkg/layout"
	"cstruct2yaml/pkg/preprocess"
)

// setupLogging installs one logger for the command and every library
// package. Verbose runs get the development logger; otherwise only
// warnings reach stderr.
func setupLogging(verbose bool) error {
	var (
		l   *zap.Logger
		err error
	)
	if verbose {
		l, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.DisableStacktrace = true
		cfg.DisableCaller = true
		l, err = cfg.Build()
	}
	if err != nil {
		return err
	}

	zap.ReplaceGlobals(l)
	preprocess.SetLogger(l.Named("preprocess"))
	layout.SetLogger(l.Named("layout"))
	analyze.SetLogger(l.Named("analyze"))
	return nil
}
