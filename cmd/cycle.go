package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	bmh "github.com/zing-dev/bmh-sdk"
	"github.com/zing-dev/bmh-sdk/internal/config"
	"github.com/zing-dev/bmh-sdk/internal/publish"
)

var errNoReading = errors.New("no valid impedance reading")

// cycle runs one measurement: impedance mode, electrode mode, status polling,
// composition and levels.
type cycle struct {
	client  *bmh.Client
	profile bmh.UserProfile
	mode    string
	polls   int
	delay   time.Duration
	log     logrus.FieldLogger
}

func newCycle(client *bmh.Client, cfg *config.Config, log logrus.FieldLogger) (*cycle, error) {
	profile, err := cfg.Profile.UserProfile()
	if err != nil {
		return nil, err
	}
	return &cycle{
		client:  client,
		profile: profile,
		mode:    cfg.Mode,
		polls:   cfg.Cycle.StatusPolls,
		delay:   cfg.Cycle.PollDelay,
		log:     log,
	}, nil
}

func (c *cycle) run(ctx context.Context) (*publish.Measurement, error) {
	if err := c.client.EnterImpedanceMode(); err != nil {
		return nil, fmt.Errorf("enter impedance mode: %w", err)
	}

	if c.mode != "keep" {
		want, err := bmh.ParseMode(c.mode)
		if err != nil {
			return nil, err
		}
		if err = c.client.SetMode(want); err != nil {
			return nil, fmt.Errorf("set mode: %w", err)
		}
	}
	mode, err := c.client.ReadMode()
	if err != nil {
		return nil, fmt.Errorf("read mode: %w", err)
	}
	c.log.WithField("mode", mode).Debug("electrode mode")

	reading, err := c.waitImpedance(ctx)
	if err != nil {
		return nil, err
	}

	composition, err := c.client.BodyComposition(c.profile, reading.Value)
	if err != nil {
		return nil, fmt.Errorf("body composition: %w", err)
	}
	m := &publish.Measurement{
		Time:        time.Now(),
		Mode:        mode,
		Profile:     c.profile,
		Impedance:   reading,
		Composition: composition,
	}
	// 等级判断失败不影响成分结果
	if m.Levels, err = c.client.Levels(); err != nil {
		c.log.WithError(err).Warn("levels unavailable")
	}
	return m, nil
}

// waitImpedance polls the status until the module reports a usable reading.
func (c *cycle) waitImpedance(ctx context.Context) (bmh.ImpedanceReading, error) {
	for i := 0; i < c.polls; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return bmh.ImpedanceReading{}, ctx.Err()
			case <-time.After(c.delay):
			}
		}
		status, err := c.client.QueryStatus()
		if err != nil {
			return bmh.ImpedanceReading{}, fmt.Errorf("query status: %w", err)
		}
		log := c.log.WithFields(logrus.Fields{
			"poll":   i + 1,
			"state":  status.State,
			"class":  status.Reading.Class,
			"value":  status.Reading.Value,
			"status": fmt.Sprintf("0x%02X", status.WorkStatus),
		})
		switch status.Reading.Class {
		case bmh.ReadingValid:
			log.Info("impedance measured")
			return status.Reading, nil
		case bmh.ReadingFailed:
			return bmh.ImpedanceReading{}, fmt.Errorf("impedance measurement failed (state %v)", status.State)
		case bmh.ReadingInvalid:
			log.Warn("electrode contact failure")
		default:
			log.Debug("impedance not ready")
		}
	}
	return bmh.ImpedanceReading{}, fmt.Errorf("%w after %d polls", errNoReading, c.polls)
}
