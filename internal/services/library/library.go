package library

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/sandersonthethird/meetrec/internal/modules/config"
	"github.com/sandersonthethird/meetrec/pkg/db"
	"github.com/sandersonthethird/meetrec/pkg/serial"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
)

var logger = logrus.WithField("service", "library")

var ErrRecordNotFound = fmt.Errorf("no recording found for this meeting")

const recordingsBucket = "Recordings"

// Record is the persisted outcome of one finalized recording. The stored
// filename is a hint only; playback resolves it against the disk.
type Record struct {
	MeetingID  string    `json:"meeting_id"`
	Filename   string    `json:"filename"`
	Bytes      uint64    `json:"bytes"`
	FinishedAt time.Time `json:"finished_at"`
}

type Service struct {
	bucket     *db.Bucket
	serializer *serial.Serializer
}

func NewService(lc fx.Lifecycle, cfg *config.Config) (*Service, error) {
	client, err := db.Open(filepath.Join(cfg.DatabaseDir, "library.db"))
	if err != nil {
		return nil, err
	}
	bucket, err := client.Bucket(recordingsBucket)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	lc.Append(fx.StopHook(client.Close))

	return &Service{
		bucket:     bucket,
		serializer: serial.New(),
	}, nil
}

func (s *Service) Save(record *Record) error {
	data, err := s.serializer.Serialize(record)
	if err != nil {
		return err
	}
	logger.Debugf("saving recording record for meeting %s", record.MeetingID)
	return s.bucket.Put([]byte(record.MeetingID), data)
}

func (s *Service) Get(meetingID string) (*Record, error) {
	var record *Record
	err := s.bucket.GetFunc([]byte(meetingID), func(data []byte) error {
		record = &Record{}
		return s.serializer.Deserialize(data, record)
	})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrRecordNotFound
	}
	return record, nil
}

func (s *Service) List() ([]*Record, error) {
	records := make([]*Record, 0)
	err := s.bucket.ForEach(func(k, v []byte) error {
		record := &Record{}
		if err := s.serializer.Deserialize(v, record); err != nil {
			return fmt.Errorf("deserialize record %s: %w", string(k), err)
		}
		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].FinishedAt.After(records[j].FinishedAt)
	})
	return records, nil
}

func (s *Service) Delete(meetingID string) error {
	return s.bucket.Delete([]byte(meetingID))
}
