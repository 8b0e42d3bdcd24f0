package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tadawul/internal/models"
)

// BridgeOptions configures the external analysis script.
type BridgeOptions struct {
	Command string
	Args    []string
	Timeout time.Duration
	Logger  arbor.ILogger
}

// Bridge runs an external script that prints exactly one JSON object on stdout:
//
//	<command> <args...> --action quote --symbol 2222.SR
//	<command> <args...> --action series --symbol 2222.SR --from 2025-01-01 --to 2025-03-31
type Bridge struct {
	command string
	args    []string
	timeout time.Duration
	logger  arbor.ILogger
}

// NewBridge creates the subprocess adapter.
func NewBridge(opts BridgeOptions) *Bridge {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = Options{}.logger()
	}
	return &Bridge{
		command: opts.Command,
		args:    opts.Args,
		timeout: timeout,
		logger:  logger,
	}
}

func (b *Bridge) Name() models.SourceName { return models.SourceBridge }

type bridgeQuote struct {
	Error         string     `json:"error"`
	Symbol        string     `json:"symbol"`
	Name          string     `json:"name"`
	Price         flexNumber `json:"price"`
	PreviousClose flexNumber `json:"previousClose"`
	Open          flexNumber `json:"open"`
	High          flexNumber `json:"high"`
	Low           flexNumber `json:"low"`
	Volume        flexNumber `json:"volume"`
	Currency      string     `json:"currency"`
}

type bridgeSeries struct {
	Error  string `json:"error"`
	Series []struct {
		Date   string     `json:"date"`
		Open   flexNumber `json:"open"`
		High   flexNumber `json:"high"`
		Low    flexNumber `json:"low"`
		Close  flexNumber `json:"close"`
		Volume flexNumber `json:"volume"`
	} `json:"series"`
}

// FetchQuote runs the script with --action quote.
func (b *Bridge) FetchQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	sym, ferr := parseSymbol(b.Name(), symbol)
	if ferr != nil {
		return nil, ferr
	}

	out, ferr := b.run(ctx, sym.String(), "--action", "quote", "--symbol", sym.String())
	if ferr != nil {
		return nil, ferr
	}

	q, err := b.NormalizeQuote(sym.String(), out)
	if err != nil {
		return nil, err
	}
	return finishQuote(b.Name(), sym, q, b.logger)
}

// NormalizeQuote decodes the script's quote object.
func (b *Bridge) NormalizeQuote(symbol string, body []byte) (*models.Quote, error) {
	var raw bridgeQuote
	if err := decodeSingleObject(body, &raw); err != nil {
		return nil, malformed(b.Name(), symbol, err)
	}
	if raw.Error != "" {
		return nil, newError(b.Name(), symbol, KindUnavailable, errors.New(raw.Error))
	}
	return &models.Quote{
		Symbol:        symbol,
		Name:          raw.Name,
		Price:         raw.Price.float(),
		PreviousClose: raw.PreviousClose.float(),
		Open:          raw.Open.float(),
		High:          raw.High.float(),
		Low:           raw.Low.float(),
		Volume:        raw.Volume.int64(),
		Currency:      raw.Currency,
	}, nil
}

// FetchSeries runs the script with --action series.
func (b *Bridge) FetchSeries(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error) {
	sym, ferr := parseSymbol(b.Name(), symbol)
	if ferr != nil {
		return nil, ferr
	}

	out, ferr := b.run(ctx, sym.String(),
		"--action", "series",
		"--symbol", sym.String(),
		"--from", from.Format(models.DateLayout),
		"--to", to.Format(models.DateLayout),
	)
	if ferr != nil {
		return nil, ferr
	}

	var raw bridgeSeries
	if err := decodeSingleObject(out, &raw); err != nil {
		return nil, malformed(b.Name(), sym.String(), err)
	}
	if raw.Error != "" {
		return nil, newError(b.Name(), sym.String(), KindUnavailable, errors.New(raw.Error))
	}

	series := make(models.PriceSeries, 0, len(raw.Series))
	for _, bar := range raw.Series {
		date, err := time.Parse(models.DateLayout, bar.Date)
		if err != nil {
			continue
		}
		series = append(series, models.Bar{
			Date:   date,
			Open:   bar.Open.float(),
			High:   bar.High.float(),
			Low:    bar.Low.float(),
			Close:  bar.Close.float(),
			Volume: bar.Volume.int64(),
		})
	}
	return finishSeries(b.Name(), sym.String(), series)
}

// run executes the script once and returns its stdout.
func (b *Bridge) run(ctx context.Context, symbol string, extra ...string) ([]byte, *FetchError) {
	if b.command == "" {
		return nil, unsupported(b.Name(), symbol, "no bridge command configured")
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	args := append(append([]string{}, b.args...), extra...)
	cmd := exec.CommandContext(ctx, b.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Grandchildren may keep the pipes open after the script is killed
	cmd.WaitDelay = time.Second

	b.logger.Debug().
		Str("command", b.command).
		Strs("args", args).
		Msg("Running bridge script")

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, newError(b.Name(), symbol, KindTimeout, ctx.Err())
		}
		return nil, newError(b.Name(), symbol, KindUnavailable,
			fmt.Errorf("bridge exited: %w: %s", err, strings.TrimSpace(stderr.String())))
	}

	return stdout.Bytes(), nil
}

// decodeSingleObject requires exactly one JSON object with nothing after it.
func decodeSingleObject(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("expected a single JSON object on stdout")
	}
	return nil
}
