package source

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"zenlogd/pkg/record"
)

// ErrInvalidRange is returned when a RandomSource's configured length range
// is empty (min > max).
var ErrInvalidRange = errors.New("source: invalid random length range")

const printableLow, printableHigh = 0x20, 0x7E

// RandomSource emits a record with a random printable message at a
// configured rate.
type RandomSource struct {
	tx     Tx
	logger *logrus.Logger
	rate   float64
	min    uint16
	max    uint16
	rng    *rand.Rand
	stop   chan struct{}
	done   chan struct{}
}

// NewRandomSource starts emitting records at rate per second, with message
// lengths uniformly drawn from [lengthRange[0], lengthRange[1]].
func NewRandomSource(rate float64, lengthRange [2]uint16, tx Tx, logger *logrus.Logger) (*RandomSource, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("source: rate must be > 0, got %v", rate)
	}
	if lengthRange[0] > lengthRange[1] {
		return nil, ErrInvalidRange
	}

	s := &RandomSource{
		tx:     tx,
		logger: logger,
		rate:   rate,
		min:    lengthRange[0],
		max:    lengthRange[1],
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.run()
	return s, nil
}

func (s *RandomSource) TypeName() string { return "random" }

func (s *RandomSource) run() {
	defer close(s.done)

	interval := time.Duration(float64(time.Second) / s.rate)
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-timer.C:
			rec := record.NewObject([]record.Field{
				{Key: "message", Value: record.NewString(s.randomString())},
			})
			select {
			case s.tx <- rec:
			case <-s.stop:
				return
			}
			timer.Reset(interval)
		}
	}
}

func (s *RandomSource) randomString() string {
	span := int(s.max) - int(s.min) + 1
	length := int(s.min)
	if span > 1 {
		length += s.rng.Intn(span)
	}

	b := make([]byte, length)
	for i := range b {
		b[i] = byte(printableLow + s.rng.Intn(printableHigh-printableLow+1))
	}
	return string(b)
}

// Close stops the emission goroutine and joins it.
func (s *RandomSource) Close() error {
	close(s.stop)
	<-s.done
	return nil
}
