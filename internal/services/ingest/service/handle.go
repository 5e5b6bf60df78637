package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"footfall/internal/core/mac"
	perr "footfall/internal/platform/errors"
	ptime "footfall/internal/platform/time"
	"footfall/internal/services/ingest/domain"
)

// Outcome classifies what happened to one message
type Outcome int

// Outcomes of handling a single message
const (
	Stored Outcome = iota
	Duplicate
	Overflowed
	Dropped
)

// Handle processes one bus message end to end. It never returns an error:
// every failure class maps to an outcome, and only transient storage errors
// block (in a bounded-by-ctx retry loop) rather than resolve
func (s *Svc) Handle(ctx context.Context, subject string, data []byte) Outcome {
	log := s.deps.Log

	antenna := mac.Normalize(lastToken(subject))
	if !mac.Valid(antenna) {
		log.Error().Str("subject", subject).Msg("subject does not end in an antenna id, dropping")
		return Dropped
	}

	var p domain.Payload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Str("antenna", antenna).Err(err).Msg("malformed payload, dropping")
		return Dropped
	}
	if err := s.validate.Struct(p); err != nil {
		log.Error().Str("antenna", antenna).Err(err).Msg("invalid payload, dropping")
		return Dropped
	}

	ev := s.normalize(antenna, p)
	if mac.ContainsNUL(ev.SA, ev.DA, ev.SSID, ev.Vendor) {
		log.Error().Str("antenna", antenna).Msg("payload embeds NUL, dropping")
		return Dropped
	}

	return s.insertWithRetry(ctx, ev)
}

// normalize maps the wire payload onto a partition row
func (s *Svc) normalize(antenna string, p domain.Payload) domain.RawEvent {
	ev := domain.RawEvent{
		RT:           epochIn(p.RT, s.cfg.TZ),
		SA:           mac.Normalize(p.SA),
		DA:           mac.Normalize(p.DA),
		RSSI:         p.RSSI,
		SeqNo:        p.SN,
		Vendor:       p.CName,
		FrameType:    *p.Type,
		FrameSubtype: -1,
		SSID:         p.SSID,
		Channel:      p.Channel,
		DeliveryTime: time.Now().In(s.cfg.TZ),
		Antenna:      antenna,
	}
	if p.Subtype != nil {
		ev.FrameSubtype = *p.Subtype
	}
	if p.UploadTime != nil {
		ev.UploadTime = ptime.Ptr(epochIn(*p.UploadTime, s.cfg.TZ))
	}
	return ev
}

// insertWithRetry applies the outcome contract of the partition insert
func (s *Svc) insertWithRetry(ctx context.Context, ev domain.RawEvent) Outcome {
	log := s.deps.Log

	for {
		err := s.Repo.InsertEvent(ctx, ev)
		switch {
		case err == nil:
			return Stored

		case perr.IsDuplicateKey(err):
			log.Debug().Str("antenna", ev.Antenna).Time("rt", ev.RT).Str("sa", ev.SA).
				Msg("duplicate detection, already stored")
			return Duplicate

		case perr.IsPartitionMiss(err):
			log.Warn().Str("antenna", ev.Antenna).Time("rt", ev.RT).
				Msg("no partition for row, writing to overflow")
			if oerr := s.insertOverflowWithRetry(ctx, ev); oerr != nil {
				log.Error().Str("antenna", ev.Antenna).Err(oerr).Msg("overflow insert failed, dropping")
				return Dropped
			}
			return Overflowed

		case perr.Retryable(err) || perr.IsConnectionUnavailable(err):
			log.Warn().Str("antenna", ev.Antenna).Err(err).Dur("backoff", s.cfg.RetryBackoff).
				Msg("transient storage error, retrying")
			select {
			case <-ctx.Done():
				return Dropped
			case <-time.After(s.cfg.RetryBackoff):
			}

		default:
			log.Error().Str("antenna", ev.Antenna).Err(err).Msg("unstorable event, dropping")
			return Dropped
		}
	}
}

func (s *Svc) insertOverflowWithRetry(ctx context.Context, ev domain.RawEvent) error {
	for {
		err := s.Repo.InsertOverflow(ctx, ev)
		if err == nil || !perr.Retryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.RetryBackoff):
		}
	}
}

func lastToken(subject string) string {
	if i := strings.LastIndexByte(subject, '.'); i >= 0 {
		return subject[i+1:]
	}
	return subject
}

func epochIn(sec float64, loc *time.Location) time.Time {
	s := int64(sec)
	ns := int64((sec - float64(s)) * 1e9)
	return time.Unix(s, ns).In(loc)
}
