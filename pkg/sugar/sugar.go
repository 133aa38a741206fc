package sugar

import (
	"context"
	"errors"
	"sync"

	ghid "github.com/go-ctap/hid"
	"github.com/go-ctap/hybridmoc/pkg/device"
	"github.com/go-ctap/hybridmoc/pkg/options"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// vendorUsagePage is the first vendor-defined HID usage page, which card
// readers speaking the card link report.
const vendorUsagePage = 0xff00

func EnumerateReaders(opts ...options.Option) ([]*ghid.DeviceInfo, error) {
	oo := options.NewOptions(opts...)

	devInfos := make([]*ghid.DeviceInfo, 0)
	for devInfo, err := range device.Enumerate(oo.Context, oo.Paths...) {
		if err != nil {
			return nil, err
		}

		if devInfo.UsagePage < vendorUsagePage {
			continue
		}

		devInfos = append(devInfos, devInfo)
	}

	return devInfos, nil
}

// SelectReader opens every candidate reader concurrently and returns the
// first one with a card answering; the others are closed.
func SelectReader(opts ...options.Option) (*device.Device, error) {
	oo := options.NewOptions(opts...)

	if oo.Paths == nil {
		devInfos, err := EnumerateReaders(opts...)
		if err != nil {
			return nil, err
		}
		oo.Paths = lo.Map(devInfos, func(devInfo *ghid.DeviceInfo, _ int) string {
			return devInfo.Path
		})
	}

	if len(oo.Paths) == 0 {
		return nil, device.ErrNoDevice
	}
	if len(oo.Paths) == 1 {
		return device.New(oo.Paths[0], opts...)
	}

	ctx, cancel := context.WithCancel(oo.Context)
	defer cancel()
	opts = append(opts, options.WithContext(ctx))

	// Every reader reports either its device or the error opening it.
	results := make(chan mo.Either[*device.Device, error], len(oo.Paths))
	var wg sync.WaitGroup
	for _, p := range oo.Paths {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()

			dev, err := device.New(path, opts...)
			if err != nil {
				results <- mo.Right[*device.Device, error](err)
				return
			}
			results <- mo.Left[*device.Device, error](dev)
		}(p)
	}
	wg.Wait()
	close(results)

	var (
		selected *device.Device
		errs     []error
	)
	for r := range results {
		if err, ok := r.Right(); ok {
			errs = append(errs, err)
			continue
		}

		dev := r.MustLeft()
		if selected == nil {
			selected = dev
			continue
		}
		if err := dev.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if selected == nil {
		return nil, errors.Join(append([]error{device.ErrNoDevice}, errs...)...)
	}

	return selected, nil
}
