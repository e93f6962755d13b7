package domain

// DayComparison contrasts sensor activity on two calendar days.
type DayComparison struct {
	Date1        string            `json:"date1"`
	Date2        string            `json:"date2"`
	Summary      ComparisonSummary `json:"summary"`
	BySensorType []TypeComparison  `json:"bySensorType"`
	Day1Data     []SensorReading   `json:"day1Data"`
	Day2Data     []SensorReading   `json:"day2Data"`
}

type ComparisonSummary struct {
	TotalSensorsDay1 int     `json:"totalSensorsDay1"`
	TotalSensorsDay2 int     `json:"totalSensorsDay2"`
	AverageValueDay1 float64 `json:"averageValueDay1"`
	AverageValueDay2 float64 `json:"averageValueDay2"`
	Difference       float64 `json:"difference"`
	PercentageChange float64 `json:"percentageChange"`
	Trend            string  `json:"trend"`
}

type TypeComparison struct {
	SensorType       string  `json:"sensorType"`
	Day1Count        int     `json:"day1Count"`
	Day1Average      float64 `json:"day1Average"`
	Day2Count        int     `json:"day2Count"`
	Day2Average      float64 `json:"day2Average"`
	Difference       float64 `json:"difference"`
	PercentageChange float64 `json:"percentageChange"`
}
