// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package bmh

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/goburrow/serial"
	"github.com/sirupsen/logrus"
)

const (
	// Granularity of the background reader.
	serialTimeout     = 10 * time.Millisecond
	serialIdleTimeout = 60 * time.Second
)

// Port is the byte channel a transaction runs over. None of its methods may
// block waiting for input.
type Port interface {
	io.Writer
	// Buffered reports how many received bytes can be read right away.
	Buffered() int
	// ReadBuffered copies up to len(p) received bytes into p.
	ReadBuffered(p []byte) (n int, err error)
	// Discard drops everything received so far.
	Discard() error
}

var discardLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// serialPort has configuration and I/O controller. A background goroutine
// moves bytes from the device into rx so Port never blocks.
type serialPort struct {
	// Serial port configuration.
	serial.Config

	Logger      logrus.FieldLogger
	IdleTimeout time.Duration

	mu sync.Mutex
	// port is platform-dependent data structure for serial port.
	port         io.ReadWriteCloser
	lastActivity time.Time
	closeTimer   *time.Timer
	rx           []byte
	rxErr        error
}

var _ Port = (*serialPort)(nil)

func (mb *serialPort) Connect() (err error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	return mb.connect()
}

// connect connects to the serial port if it is not connected. Caller must hold the mutex.
func (mb *serialPort) connect() error {
	if mb.port == nil {
		port, err := serial.Open(&mb.Config)
		if err != nil {
			return err
		}
		mb.port = port
		mb.rx = mb.rx[:0]
		mb.rxErr = nil
		mb.logf("serial: opened %s at %d baud", mb.Address, mb.BaudRate)
		go mb.receive(port)
	}
	return nil
}

func (mb *serialPort) Close() (err error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	return mb.close()
}

// close closes the serial port if it is connected. Caller must hold the mutex.
func (mb *serialPort) close() (err error) {
	if mb.port != nil {
		err = mb.port.Close()
		mb.port = nil
	}
	return
}

func (mb *serialPort) receive(port io.ReadWriteCloser) {
	buf := make([]byte, 64)
	for {
		n, err := port.Read(buf)
		mb.mu.Lock()
		if mb.port != port {
			// closed or reopened meanwhile
			mb.mu.Unlock()
			return
		}
		if n > 0 {
			mb.rx = append(mb.rx, buf[:n]...)
			mb.lastActivity = time.Now()
		}
		if err != nil && !errors.Is(err, serial.ErrTimeout) {
			mb.rxErr = err
			mb.mu.Unlock()
			return
		}
		mb.mu.Unlock()
	}
}

func (mb *serialPort) Write(p []byte) (int, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if err := mb.connect(); err != nil {
		return 0, err
	}
	// Start the timer to close when idle
	mb.lastActivity = time.Now()
	mb.startCloseTimer()
	return mb.port.Write(p)
}

func (mb *serialPort) Buffered() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if len(mb.rx) == 0 && mb.rxErr != nil {
		// let ReadBuffered surface the error
		return 1
	}
	return len(mb.rx)
}

func (mb *serialPort) ReadBuffered(p []byte) (int, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if len(mb.rx) == 0 && mb.rxErr != nil {
		return 0, mb.rxErr
	}
	n := copy(p, mb.rx)
	mb.rx = append(mb.rx[:0], mb.rx[n:]...)
	return n, nil
}

// Discard drops pending input. A port whose reader died is reopened.
func (mb *serialPort) Discard() error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.rxErr != nil {
		mb.logf("serial: reopening after read error: %v", mb.rxErr)
		mb.close()
	}
	if err := mb.connect(); err != nil {
		return err
	}
	if len(mb.rx) > 0 {
		mb.logf("serial: discarding % x", mb.rx)
	}
	mb.rx = mb.rx[:0]
	return nil
}

func (mb *serialPort) log() logrus.FieldLogger {
	if mb.Logger != nil {
		return mb.Logger
	}
	return discardLogger
}

func (mb *serialPort) logf(format string, v ...interface{}) {
	if mb.Logger != nil {
		mb.Logger.Debugf(format, v...)
	}
}

func (mb *serialPort) startCloseTimer() {
	if mb.IdleTimeout <= 0 {
		return
	}
	if mb.closeTimer == nil {
		mb.closeTimer = time.AfterFunc(mb.IdleTimeout, mb.closeIdle)
	} else {
		mb.closeTimer.Reset(mb.IdleTimeout)
	}
}

// closeIdle closes the connection if last activity is passed behind IdleTimeout.
func (mb *serialPort) closeIdle() {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.IdleTimeout <= 0 {
		return
	}
	idle := time.Now().Sub(mb.lastActivity)
	if idle >= mb.IdleTimeout {
		mb.logf("serial: closing connection due to idle timeout: %v", idle)
		mb.close()
	}
}
