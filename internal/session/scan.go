package session

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/rclink/internal/device"
)

func (s *Session) startScan() {
	if s.state != Idle {
		s.logger.WithField("state", s.state.String()).Warn("Scan request ignored")
		return
	}

	s.registry.Clear()
	s.scanEpoch++
	epoch := s.scanEpoch

	if err := s.transport.StartScan(s.opts.ScanTimeout, s.scanSink(epoch)); err != nil {
		s.failScan(err)
		return
	}

	s.setState(Scanning, nil)
	s.setScanning(true)
	s.setStatus(StatusScanning)

	if s.opts.ScanTimeout > 0 {
		time.AfterFunc(s.opts.ScanTimeout+min(scanGrace, s.opts.ScanTimeout), func() {
			s.post(func() {
				if epoch == s.scanEpoch && s.state == Scanning {
					s.logger.Warn("Transport did not finish the scan in time")
					s.stopScan()
				}
			})
		})
	}
}

func (s *Session) stopScan() {
	if s.state != Scanning {
		return
	}
	s.transport.StopScan()
	s.scanEpoch++
	s.finishScan()
}

func (s *Session) finishScan() {
	s.setScanning(false)
	s.setState(Idle, nil)
	if s.registry.Len() == 0 {
		s.setStatus(StatusNoPeers)
	} else {
		s.setStatus(StatusScanComplete)
	}
}

func (s *Session) failScan(err error) {
	s.logger.WithError(err).Error("Scan failed")
	s.scanEpoch++
	s.lastErr = err
	s.setScanning(false)
	if s.state == Scanning {
		s.setState(Idle, err)
	}
	s.setStatus(StatusForError(err))
}

func (s *Session) handleScanEvent(ev device.Event) {
	if s.state != Scanning {
		return
	}

	switch e := ev.(type) {
	case device.PeerDiscovered:
		if !e.Peer.Connectable {
			s.logger.WithFields(logrus.Fields{
				"address": e.Peer.Address,
				"name":    e.Peer.Name,
			}).Debug("Skipping non-connectable peer")
			return
		}
		s.registry.Upsert(e.Peer)
	case device.ScanFinished:
		s.scanEpoch++
		s.finishScan()
	case device.ScanFailed:
		s.failScan(e.Err)
	}
}
