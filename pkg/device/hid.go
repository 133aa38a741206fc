package device

import (
	"context"
	"errors"
	"io"
	"iter"

	ghid "github.com/go-ctap/hid"
	"github.com/samber/lo"
	"github.com/sstallion/go-hid"
)

// Enumerate lists HID devices. With paths given only those devices are
// yielded.
func Enumerate(ctx context.Context, paths ...string) iter.Seq2[*ghid.DeviceInfo, error] {
	return func(yield func(*ghid.DeviceInfo, error) bool) {
		breakErr := errors.New("break")

		if err := hid.Enumerate(hid.VendorIDAny, hid.ProductIDAny, func(info *hid.DeviceInfo) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if len(paths) > 0 && !lo.Contains(paths, info.Path) {
				return nil
			}

			if !yield(&ghid.DeviceInfo{
				Path:         info.Path,
				VendorID:     info.VendorID,
				ProductID:    info.ProductID,
				SerialNbr:    info.SerialNbr,
				ReleaseNbr:   info.ReleaseNbr,
				MfrStr:       info.MfrStr,
				ProductStr:   info.ProductStr,
				UsagePage:    info.UsagePage,
				Usage:        info.Usage,
				InterfaceNbr: info.InterfaceNbr,
			}, nil) {
				return breakErr
			}

			return nil
		}); err != nil && !errors.Is(err, breakErr) {
			yield(nil, err)
			return
		}
	}
}

func OpenPath(ctx context.Context, path string) (io.ReadWriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return hid.OpenPath(path)
}

// Exit releases the HID library.
func Exit() error {
	return hid.Exit()
}
