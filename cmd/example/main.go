package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-ctap/hybridmoc/pkg/card"
	"github.com/go-ctap/hybridmoc/pkg/cardlink"
	"github.com/go-ctap/hybridmoc/pkg/encoder"
	"github.com/go-ctap/hybridmoc/pkg/hmoctypes"
	"github.com/go-ctap/hybridmoc/pkg/matcher"
	"github.com/go-ctap/hybridmoc/pkg/options"
	"github.com/go-ctap/hybridmoc/pkg/sugar"
	"github.com/go-ctap/hybridmoc/pkg/template"
)

const defaultConfig = `
magic = "0x1002"

[profile]
model = "XL"
containers = 4
finger_size = 512
far = "FAR_50000"
`

type config struct {
	Magic   hmoctypes.Magic `toml:"magic"`
	Profile sugar.Profile   `toml:"profile"`
}

func main() {
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelDebug)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	}))

	var cfg config
	if len(os.Args) > 1 {
		if _, err := toml.DecodeFile(os.Args[1], &cfg); err != nil {
			panic(err)
		}
	} else if _, err := toml.Decode(defaultConfig, &cfg); err != nil {
		panic(err)
	}

	m, err := matcher.New(cfg.Magic, matcher.ExactComparator{}, options.WithLogger(logger))
	if err != nil {
		panic(err)
	}
	c := card.New(m, options.WithLogger(logger))

	// Swap the simulated card for sugar.SelectReader() to talk to a reader.
	host, link := net.Pipe()
	defer func() {
		_ = host.Close()
	}()
	go func() {
		if err := c.Serve(context.Background(), link); err != nil {
			logger.Error("card stopped", "err", err)
		}
	}()

	s, err := sugar.NewSession(
		cardlink.NewClient(host, options.WithLogger(logger)),
		encoder.New(nil, options.WithLogger(logger)),
		options.WithLogger(logger),
	)
	if err != nil {
		panic(err)
	}

	if err := s.Personalize(cfg.Profile); err != nil {
		panic(err)
	}

	thumb := template.New(template.TypeEHM, []byte("right thumb"))
	index, err := template.NewMulti(
		template.New(template.TypeEHM, []byte("right index, center")),
		template.New(template.TypeEHM, []byte("right index, tip")),
	)
	if err != nil {
		panic(err)
	}

	if _, err := s.EnrollFinger(1, thumb); err != nil {
		panic(err)
	}
	n, err := s.EnrollFinger(2, index)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Index finger: %d sub-templates stored\n", n)
	fmt.Printf("Enrolled fingers: %v\n", s.EnrolledFingers())

	probes := []string{"right index, tip", "right thumb", "left thumb"}
	for _, p := range probes {
		code, err := s.Verify(template.New(template.TypeEHM, []byte(p)))
		if err != nil {
			panic(err)
		}
		if code == 0 {
			fmt.Printf("%q: no match\n", p)
			continue
		}
		fmt.Printf("%q: finger %d\n", p, code)
	}

	if err := s.RemoveFinger(1); err != nil {
		panic(err)
	}
	fmt.Printf("Enrolled fingers: %v\n", s.EnrolledFingers())
}
