package models

const (
	PeriodWeek     = "week"
	PeriodMonth    = "month"
	PeriodSemester = "semester"
	PeriodYear     = "year"
)

// StatsBucket aggregates occupancy for a run of BucketDays days starting at Date.
type StatsBucket struct {
	Date               string `json:"date"`
	BucketDays         int    `json:"bucket_days"`
	ActiveReservations int    `json:"active_reservations"`
	DistinctResources  int    `json:"distinct_resources"`
	ReservedDays       int    `json:"reserved_days"`
}

type StatsSummary struct {
	TotalReservations int     `json:"total_reservations"`
	TotalDays         int     `json:"total_days"`
	AverageDays       float64 `json:"average_days"`
	ResourcesUsed     int     `json:"resources_used"`
}

type ResourceUsage struct {
	Resource     string `json:"resource"`
	Reservations int    `json:"reservations"`
	TotalDays    int    `json:"total_days"`
}

type UsageStats struct {
	Period      string          `json:"period"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	Buckets     []StatsBucket   `json:"buckets"`
	Summary     StatsSummary    `json:"summary"`
	MostUsed    *ResourceUsage  `json:"most_used"`
	PerResource []ResourceUsage `json:"per_resource"`
}
