package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rubikalib/client-go/internal/apierrors"
)

// Download fetches a file into outPath, resuming from the journal when it
// describes the same file. On failure or cancellation the journal is kept
// so a later call resumes; on success it is removed.
func (e *Engine) Download(ctx context.Context, key Key, outPath string) error {
	log := e.logger.WithFields(logrus.Fields{
		"function":    "Download",
		"transfer_id": uuid.NewString(),
		"file_id":     key.FileID,
		"dc":          key.DC,
	})

	creds, err := e.credentials()
	if err != nil {
		return err
	}

	journal := OpenJournal(outPath)
	start, err := e.resumeOffset(journal, key, outPath, log)
	if err != nil {
		return &apierrors.TransferError{Op: "download", Err: err}
	}

	flags := os.O_WRONLY | os.O_CREATE
	if start == 0 {
		flags |= os.O_TRUNC
	}
	out, err := os.OpenFile(outPath, flags, 0o600)
	if err != nil {
		return &apierrors.TransferError{Op: "download", Offset: start, Err: err}
	}
	defer out.Close()

	if err := out.Truncate(start); err != nil {
		return &apierrors.TransferError{Op: "download", Offset: start, Err: err}
	}

	stream := e.newStream(key, start, creds)

	log.WithField("offset", start).Debug("Starting download")
	for {
		chunk, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.WithError(err).WithField("offset", stream.Offset()).Warn("Download interrupted")
			return &apierrors.TransferError{Op: "download", Offset: stream.Offset(), Err: err}
		}

		if _, err := out.WriteAt(chunk.Data, chunk.Offset); err != nil {
			return &apierrors.TransferError{Op: "download", Offset: chunk.Offset, Err: err}
		}
		if err := out.Sync(); err != nil {
			return &apierrors.TransferError{Op: "download", Offset: chunk.Offset, Err: err}
		}
		if err := journal.Append(key, chunk.End()); err != nil {
			return &apierrors.TransferError{Op: "download", Offset: chunk.End(), Err: err}
		}
		e.report(chunk.End(), -1)
	}

	if err := out.Close(); err != nil {
		return &apierrors.TransferError{Op: "download", Offset: stream.Offset(), Err: err}
	}
	if err := journal.Remove(); err != nil {
		return &apierrors.TransferError{Op: "download", Offset: stream.Offset(), Err: err}
	}

	log.WithField("size", stream.Offset()).Info("Download complete")
	return nil
}

// resumeOffset returns where to continue. A journal for a different file, or
// one that claims more bytes than the output holds, is discarded together
// with the partial output.
func (e *Engine) resumeOffset(journal *Journal, key Key, outPath string, log logrus.FieldLogger) (int64, error) {
	prior, offset, ok, err := journal.Last()
	if err != nil {
		return 0, err
	}

	if ok && prior == key {
		info, err := os.Stat(outPath)
		if err == nil && info.Size() >= offset {
			log.WithField("offset", offset).Info("Resuming download")
			return offset, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return 0, err
		}
	}

	if ok || journal.Exists() {
		log.Info("Discarding stale download journal")
		if err := journal.Remove(); err != nil {
			return 0, err
		}
		if err := os.Remove(outPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("remove partial output: %w", err)
		}
	}
	return 0, nil
}
