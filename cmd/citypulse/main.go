package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ghalamif/CityPulse"
	"github.com/ghalamif/CityPulse/internal/adapters/auth"
	"github.com/ghalamif/CityPulse/internal/adapters/httpapi"
	"github.com/ghalamif/CityPulse/internal/ports"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "watch":
		err = watchCommand(os.Args[2:])
	case "submit":
		err = submitCommand(os.Args[2:])
	case "compare":
		err = compareCommand(os.Args[2:])
	case "login":
		err = loginCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("citypulse %s: %v", cmd, err)
	}
}

func loadConfig(path string) (*citypulse.Config, error) {
	if path == "" {
		return citypulse.DefaultConfig(), nil
	}
	return citypulse.LoadConfig(path)
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to dashboard configuration file (empty for simulated defaults)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	d, err := citypulse.NewDashboard(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return d.Run(ctx)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := citypulse.LoadConfig(*cfgPath); err != nil {
		return err
	}
	fmt.Printf("config %s looks good\n", *cfgPath)
	return nil
}

func watchCommand(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8080", "Dashboard base URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(*url, "/")+"/api/stats/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	fmt.Printf("Streaming stats from %s as subscriber %s (Ctrl+C to stop)\n", *url, resp.Header.Get("X-Subscriber-ID"))
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var rec citypulse.StatsRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			fmt.Fprintf(os.Stderr, "bad frame: %v\n", err)
			continue
		}
		fmt.Printf("[%s] users=%.0f orders=%.0f revenue=%.0f growth=%.2f active=%.0f sales=%.0f conversion=%.2f aov=%.0f\n",
			time.Now().Format(time.TimeOnly),
			rec.Users, rec.Orders, rec.Revenue, rec.Growth,
			rec.ActiveUsers, rec.TotalSales, rec.ConversionRate, rec.AvgOrderValue,
		)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func submitCommand(args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8080", "Dashboard base URL")
	sensor := fs.String("sensor", "", "Sensor ID")
	sensorType := fs.String("type", "", "Sensor type (temperature, noise, ...)")
	value := fs.Float64("value", 0, "Reading value")
	location := fs.String("location", "", "Sensor location")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sensor == "" || *sensorType == "" {
		return errors.New("-sensor and -type are required")
	}

	body, err := json.Marshal(citypulse.SensorReading{
		SensorID:   *sensor,
		SensorType: *sensorType,
		Value:      *value,
		Location:   *location,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	resp, err := http.Post(strings.TrimRight(*url, "/")+"/api/readings", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	fmt.Printf("reading from %s queued\n", *sensor)
	return nil
}

func compareCommand(args []string) error {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to dashboard configuration file")
	now := time.Now()
	date1 := fs.String("date1", now.AddDate(0, 0, -1).Format(time.DateOnly), "First day (YYYY-MM-DD)")
	date2 := fs.String("date2", now.Format(time.DateOnly), "Second day (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var src ports.ComparisonSource = httpapi.OfflineComparisons{}
	if cfg.API.Enabled {
		tok, err := readToken(cfg)
		if err != nil {
			return err
		}
		src, err = httpapi.NewClient(httpapi.Config{BaseURL: cfg.API.BaseURL, Timeout: cfg.API.Timeout}, tok)
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cmp, err := src.CompareDayToDay(ctx, *date1, *date2)
	if err != nil {
		return err
	}

	s := cmp.Summary
	fmt.Printf("%s vs %s: sensors %d -> %d, average %.2f -> %.2f (%+.2f, %+.2f%%, %s)\n",
		cmp.Date1, cmp.Date2, s.TotalSensorsDay1, s.TotalSensorsDay2,
		s.AverageValueDay1, s.AverageValueDay2, s.Difference, s.PercentageChange, s.Trend)
	for _, tc := range cmp.BySensorType {
		fmt.Printf("  %-12s %2d @ %8.2f -> %2d @ %8.2f (%+.2f%%)\n",
			tc.SensorType, tc.Day1Count, tc.Day1Average, tc.Day2Count, tc.Day2Average, tc.PercentageChange)
	}
	return nil
}

func loginCommand(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to dashboard configuration file")
	user := fs.String("user", "", "Username")
	password := fs.String("password", "", "Password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := citypulse.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.API.BaseURL == "" {
		return errors.New("api.base_url is required to log in")
	}
	if cfg.Auth.TokenFile == "" {
		return errors.New("auth.token_file is required to store the token")
	}
	if *user == "" {
		return errors.New("-user is required")
	}

	client, err := httpapi.NewClient(httpapi.Config{BaseURL: cfg.API.BaseURL, Timeout: cfg.API.Timeout}, nil)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.Login(ctx, *user, *password)
	if err != nil {
		return err
	}
	if err := auth.WriteToken(cfg.Auth.TokenFile, resp.Token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	fmt.Printf("logged in as %s, token stored in %s (expires %s)\n", *user, cfg.Auth.TokenFile, resp.Expiration)
	return nil
}

func readToken(cfg *citypulse.Config) (ports.Authenticator, error) {
	if cfg.Auth.TokenFile == "" {
		return auth.StaticToken(cfg.Auth.Token), nil
	}
	raw, err := os.ReadFile(cfg.Auth.TokenFile)
	if errors.Is(err, os.ErrNotExist) {
		return auth.StaticToken(""), nil
	}
	if err != nil {
		return nil, err
	}
	return auth.StaticToken(strings.TrimSpace(string(raw))), nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8080/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(*url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

var snapshotMetrics = []string{
	"citypulse_ticks_total",
	"citypulse_synthetic_fallbacks_total",
	"citypulse_subscribers",
	"citypulse_subscriber_drops_total",
	"citypulse_outbox_queue_length",
}

func printMetricsSnapshot(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values := make(map[string]float64, len(snapshotMetrics))
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for _, key := range snapshotMetrics {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %g", &value); err == nil {
					values[key] = value
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Printf("[%s] ticks=%.0f simulated=%.0f subscribers=%.0f drops=%.0f outbox=%.0f\n",
		time.Now().Format(time.RFC3339),
		values["citypulse_ticks_total"],
		values["citypulse_synthetic_fallbacks_total"],
		values["citypulse_subscribers"],
		values["citypulse_subscriber_drops_total"],
		values["citypulse_outbox_queue_length"],
	)
	return nil
}

func printUsage() {
	fmt.Printf(`CityPulse CLI

Usage:
  citypulse <command> [flags]

Commands:
  run        Start the dashboard runtime using the provided config
  validate   Load and validate a config file without starting the runtime
  watch      Print the live stats stream of a running dashboard
  submit     Send an operator reading to a running dashboard
  compare    Compare sensor activity between two days
  login      Exchange credentials for a token and store it in auth.token_file
  stats      Poll the Prometheus metrics endpoint and print live counters

Examples:
  citypulse run -config ./data/config.yaml
  citypulse validate -config ./data/config.yaml
  citypulse watch -url http://localhost:8080
  citypulse submit -sensor sensor010 -type noise -value 71.2 -location "Main St"
  citypulse compare -date1 2024-05-01 -date2 2024-05-02
  citypulse login -user operator -password secret
  citypulse stats -url http://localhost:8080/metrics -interval 1s
`)
}
