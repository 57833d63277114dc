package domain

// ActivityStatus is the processing state the service reports for an activity.
// Values outside the known vocabulary decode to ActivityStatusUnknown.
type ActivityStatus string

const (
	ActivityStatusDone       ActivityStatus = "done"
	ActivityStatusError      ActivityStatus = "error"
	ActivityStatusStopped    ActivityStatus = "stopped"
	ActivityStatusProcessing ActivityStatus = "processing"
	ActivityStatusUnknown    ActivityStatus = "unknown"
)

// ParseActivityStatus maps a raw server value onto a known status.
func ParseActivityStatus(raw string) ActivityStatus {
	switch status := ActivityStatus(raw); status {
	case ActivityStatusDone, ActivityStatusError, ActivityStatusStopped, ActivityStatusProcessing:
		return status
	}
	return ActivityStatusUnknown
}

// Activity is one recorded movement attempt, called a trial by the service.
type Activity struct {
	ID        string
	SessionID string
	Name      *string
	Status    ActivityStatus
	// RawStatus keeps the server value when Status is ActivityStatusUnknown.
	RawStatus string
	Videos    []Video
	Results   []Result
}

// HasName reports whether the activity carries a non-empty display name.
func (a Activity) HasName() bool {
	return a.Name != nil && *a.Name != ""
}

// ResultsTagged returns the results carrying tag.
func (a Activity) ResultsTagged(tag string) []Result {
	var out []Result
	for _, r := range a.Results {
		if r.Tag != nil && *r.Tag == tag {
			out = append(out, r)
		}
	}
	return out
}

// Video is one camera's recording of an activity. Either URL is nil while the
// service is still processing it.
type Video struct {
	ID           string
	ActivityID   string
	VideoURL     *string
	ThumbnailURL *string
}

// Result references one generated output file of an activity.
type Result struct {
	ID         int
	ActivityID string
	Tag        *string
	MediaURL   *string
}

// ActivityTag is a label the service allows on activities.
type ActivityTag struct {
	Value string
	Label string
}

// ActivitySort orders subject activity listings.
type ActivitySort int

const (
	SortByLastUpdate ActivitySort = iota
)

// VideoVersion selects which rendition of an activity's videos to download.
type VideoVersion int

const (
	VideoVersionRaw VideoVersion = iota
	VideoVersionSynced
)

func (v VideoVersion) String() string {
	switch v {
	case VideoVersionRaw:
		return "raw"
	case VideoVersionSynced:
		return "synced"
	}
	return "unknown"
}
