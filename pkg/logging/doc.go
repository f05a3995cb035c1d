// Package logging provides the process-wide structured logger used by the
// storage engine.
//
// The logger is built on zap. Until Init or InitDefault is called every
// helper returns a no-op logger, so embedding the engine in a program that
// never configures logging produces no output.
//
// Typical setup:
//
//	if err := logging.Init(logging.Config{Level: "debug", Format: "json"}); err != nil {
//	    return err
//	}
//	defer logging.Close()
//
// Components derive child loggers carrying their context:
//
//	log := logging.WithComponent("bufferpool").With(logging.TxField(tid))
//	log.Debug("page loaded", logging.PageField(pid))
package logging
