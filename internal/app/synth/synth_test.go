package synth

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/ghalamif/CityPulse/internal/domain"
)

func TestSynthesizeEmptyReturnsDefault(t *testing.T) {
	if got := Synthesize(nil); !reflect.DeepEqual(got, domain.DefaultStats()) {
		t.Fatalf("expected default stats, got %+v", got)
	}
	if got := Synthesize([]domain.SensorReading{}); !reflect.DeepEqual(got, domain.DefaultStats()) {
		t.Fatalf("expected default stats for empty slice, got %+v", got)
	}
}

func TestSynthesizeFiveReadings(t *testing.T) {
	readings := make([]domain.SensorReading, 0, 5)
	for _, v := range []float64{10, 20, 30, 40, 50} {
		readings = append(readings, domain.SensorReading{SensorID: "s", SensorType: "temperature", Value: v})
	}

	got := Synthesize(readings)

	want := domain.StatsRecord{
		Users:          50,
		Orders:         5,
		Revenue:        3000,
		Growth:         50,
		ActiveUsers:    1,
		TotalSales:     25,
		ConversionRate: 3,
		AvgOrderValue:  60,
		SensorData:     readings,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected stats:\n got %+v\nwant %+v", got, want)
	}
	if &got.SensorData[0] != &readings[0] {
		t.Fatalf("expected sensor data to be passed through unmodified")
	}
}

func TestSynthesizeMissingValuesCountAsZero(t *testing.T) {
	got := Synthesize([]domain.SensorReading{{SensorID: "a", Value: 10}, {SensorID: "b"}})
	if got.Revenue != 500 {
		t.Fatalf("expected avg 5 -> revenue 500, got %v", got.Revenue)
	}
}

func TestSynthesizeHugeValueStaysEncodable(t *testing.T) {
	var readings []domain.SensorReading
	if err := json.Unmarshal([]byte(`[{"sensorId":"a","sensorType":"noise","value":1e307},{"sensorId":"b","value":1.7e308}]`), &readings); err != nil {
		t.Fatalf("decode readings: %v", err)
	}

	got := Synthesize(readings)
	if got.Revenue != math.MaxFloat64 {
		t.Fatalf("expected revenue to saturate, got %v", got.Revenue)
	}
	if got.Growth != 50 || got.ConversionRate != 10 {
		t.Fatalf("expected capped growth and conversion, got %v %v", got.Growth, got.ConversionRate)
	}
	if _, err := json.Marshal(got); err != nil {
		t.Fatalf("synthesized record must encode: %v", err)
	}
	if _, err := json.Marshal(Jitter(got, func() float64 { return 0.99 })); err != nil {
		t.Fatalf("jittered record must encode: %v", err)
	}
}

func TestSynthesizeNegativeValuesAreNotClampedBelow(t *testing.T) {
	got := Synthesize([]domain.SensorReading{{SensorID: "t", SensorType: "temperature", Value: -5}})
	if got.Growth != -10 || got.ConversionRate != -0.5 {
		t.Fatalf("expected growth -10 and conversion -0.5, got %v %v", got.Growth, got.ConversionRate)
	}
	if got.Revenue != -500 || got.AvgOrderValue != -10 {
		t.Fatalf("expected revenue -500 and avgOrderValue -10, got %v %v", got.Revenue, got.AvgOrderValue)
	}
}

func TestSynthesizeProperties(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for i := 0; i < 500; i++ {
		n := rng.IntN(40)
		readings := make([]domain.SensorReading, n)
		for j := range readings {
			readings[j].Value = rng.Float64() * 2000
		}

		got := Synthesize(readings)
		if n == 0 {
			continue
		}
		if got.Orders != float64(n) {
			t.Fatalf("orders %v != count %d", got.Orders, n)
		}
		if got.ActiveUsers != math.Floor(float64(n)*0.2) {
			t.Fatalf("activeUsers %v != floor(%d*0.2)", got.ActiveUsers, n)
		}
		if got.ConversionRate < 0 || got.ConversionRate > 10 {
			t.Fatalf("conversionRate out of range: %v", got.ConversionRate)
		}
		if got.Growth < 0 || got.Growth > 50 {
			t.Fatalf("growth out of range: %v", got.Growth)
		}
	}
}

func TestJitterLowerAndUpperEdges(t *testing.T) {
	def := domain.DefaultStats()

	low := Jitter(def, func() float64 { return 0 })
	wantLow := domain.StatsRecord{
		Users:          def.Users - 10,
		Orders:         def.Orders - 5,
		Revenue:        def.Revenue - 50,
		Growth:         def.Growth - 1,
		ActiveUsers:    def.ActiveUsers - 2,
		TotalSales:     def.TotalSales - 5,
		ConversionRate: def.ConversionRate - 0.1,
		AvgOrderValue:  def.AvgOrderValue - 2,
	}
	if !reflect.DeepEqual(low, wantLow) {
		t.Fatalf("unexpected lower edge:\n got %+v\nwant %+v", low, wantLow)
	}

	high := Jitter(def, func() float64 { return math.Nextafter(1, 0) })
	if high.Users != def.Users+9 || high.Revenue != def.Revenue+49 || high.ActiveUsers != def.ActiveUsers+2 {
		t.Fatalf("unexpected upper edge: %+v", high)
	}
	if high.Growth >= def.Growth+1 || high.ConversionRate >= def.ConversionRate+0.1 {
		t.Fatalf("continuous fields must stay below their upper bound: %+v", high)
	}
}

func TestJitterDrawsIndependentlyPerField(t *testing.T) {
	var calls int
	Jitter(domain.DefaultStats(), func() float64 {
		calls++
		return 0.5
	})
	if calls != 8 {
		t.Fatalf("expected one draw per numeric field (8), got %d", calls)
	}
}

func TestSimulatedWithinBounds(t *testing.T) {
	type bound struct {
		name   string
		field  func(domain.StatsRecord) float64
		lo, hi float64
	}
	bounds := []bound{
		{"users", func(s domain.StatsRecord) float64 { return s.Users }, -10, 10},
		{"orders", func(s domain.StatsRecord) float64 { return s.Orders }, -5, 5},
		{"revenue", func(s domain.StatsRecord) float64 { return s.Revenue }, -50, 50},
		{"growth", func(s domain.StatsRecord) float64 { return s.Growth }, -1, 1},
		{"activeUsers", func(s domain.StatsRecord) float64 { return s.ActiveUsers }, -2, 3},
		{"totalSales", func(s domain.StatsRecord) float64 { return s.TotalSales }, -5, 5},
		{"conversionRate", func(s domain.StatsRecord) float64 { return s.ConversionRate }, -0.1, 0.1},
		{"avgOrderValue", func(s domain.StatsRecord) float64 { return s.AvgOrderValue }, -2, 3},
	}

	def := domain.DefaultStats()
	rng := rand.New(rand.NewPCG(3, 5))
	for i := 0; i < 1000; i++ {
		rec := Simulated(rng.Float64)
		for _, b := range bounds {
			base := b.field(def)
			got := b.field(rec)
			// small epsilon for the float fields that add fractional deltas
			if got < base+b.lo-1e-9 || got >= base+b.hi {
				t.Fatalf("%s=%v outside [%v, %v)", b.name, got, base+b.lo, base+b.hi)
			}
		}
		if rec.SensorData != nil {
			t.Fatalf("simulated record must not carry sensor data")
		}
	}
}
