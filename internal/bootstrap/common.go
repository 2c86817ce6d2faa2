package bootstrap

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

type operation func(ctx context.Context) error

// gracefulShutdown waits for termination syscalls, or for stop to close, and runs the clean up
// operations after that.
func gracefulShutdown(ctx context.Context, timeout time.Duration, stop <-chan struct{}, ops map[string]operation) <-chan struct{} {
	wait := make(chan struct{})
	go func() {
		s := make(chan os.Signal, 1)

		// add any other syscalls that you want to be notified with
		signal.Notify(s, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(s)

		select {
		case sig := <-s:
			logrus.Infof("received %s, shutting down", sig)
		case <-stop:
			logrus.Warn("stopped without a shutdown signal, shutting down")
		}

		// force exit when clean up hangs
		timeoutFunc := time.AfterFunc(timeout, func() {
			logrus.WithField("timeout", timeout.String()).Error("clean up timed out, force exit")
			os.Exit(1)
		})
		defer timeoutFunc.Stop()

		var wg sync.WaitGroup
		for key, op := range ops {
			wg.Add(1)
			go func() {
				defer wg.Done()

				logger := logrus.WithField("operation", key)
				logger.Info("cleaning up")
				if err := op(ctx); err != nil {
					logger.WithError(err).Error("clean up failed")
					return
				}
				logger.Info("shutdown gracefully")
			}()
		}

		wg.Wait()

		close(wait)
	}()

	return wait
}

// afterStopped delays op until done is closed, so resources outlive the loop using them.
func afterStopped(done <-chan struct{}, op operation) operation {
	return func(ctx context.Context) error {
		<-done
		return op(ctx)
	}
}
