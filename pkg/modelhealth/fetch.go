package modelhealth

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/model-health/modelhealth-go/internal/convert"
	"github.com/model-health/modelhealth-go/internal/fetch"
	"github.com/model-health/modelhealth-go/internal/observability"
	"github.com/model-health/modelhealth-go/internal/wire"
	"github.com/model-health/modelhealth-go/pkg/domain"
)

// FetchVideos downloads every video of the activity in the requested rendition.
// Items that cannot be downloaded are left out, so the result may be shorter than the
// number of videos. Only cancellation and a closed client fail the call.
func (c *Client) FetchVideos(ctx context.Context, activity domain.Activity, version domain.VideoVersion) ([][]byte, error) {
	var urls []*string
	switch version {
	case domain.VideoVersionRaw:
		for _, v := range activity.Videos {
			urls = append(urls, v.VideoURL)
		}
	case domain.VideoVersionSynced:
		for _, r := range activity.ResultsTagged(domain.TagVideoSync) {
			urls = append(urls, r.MediaURL)
		}
	default:
		return nil, &domain.ValidationError{Field: "video version", Reason: "unknown value " + version.String()}
	}

	kind := "video_" + version.String()
	items, err := fetch.All(ctx, c.fetcher, kind, urls, func(ctx context.Context, u *string) ([]byte, error) {
		if u == nil {
			return nil, fetch.ErrMissingURL
		}
		return c.transport.Download(ctx, "download_video", *u)
	})
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(items))
	for _, item := range items {
		out = append(out, item.Data)
	}
	return out, nil
}

// FetchResultData downloads the requested result files of an activity. CSV types are
// converted from the stored .mot or .trc file. An empty types list makes no request.
func (c *Client) FetchResultData(ctx context.Context, activity domain.Activity, types []domain.ResultDataType) ([]domain.ResultData, error) {
	wanted := uniqueResultTypes(types)
	if len(wanted) == 0 {
		return []domain.ResultData{}, nil
	}

	items, err := fetch.All(ctx, c.fetcher, "result", wanted, func(ctx context.Context, t domain.ResultDataType) ([]byte, error) {
		media := resultMedia(activity, t)
		if media == "" {
			return nil, fetch.ErrMissingURL
		}
		data, err := c.transport.Download(ctx, "download_result", media)
		if err != nil {
			return nil, err
		}
		if t.Format() == domain.FormatCSV {
			return convert.ToCSV(t.SourceFormat(), data)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.ResultData, 0, len(items))
	for _, item := range items {
		out = append(out, domain.ResultData{Type: item.Key, Data: item.Data})
	}
	return out, nil
}

// FetchAnalysisResultData downloads analysis outputs listed in the activity's result
// manifest. Manifest entries with unknown type codes are dropped, never guessed.
func (c *Client) FetchAnalysisResultData(ctx context.Context, activity domain.Activity, types []domain.AnalysisResultDataType) ([]domain.AnalysisResultData, error) {
	wanted := make(map[domain.AnalysisResultDataType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}
	if len(wanted) == 0 {
		return []domain.AnalysisResultData{}, nil
	}

	var manifest []wire.AnalysisResult
	err := c.get(ctx, "list_analysis_results", "trials/"+escape(activity.ID)+"/analysis-results/", nil, &manifest)
	if err != nil {
		if errors.Is(err, domain.ErrClosed) || ctx.Err() != nil {
			return nil, err
		}
		observability.RecordFetchDropped("analysis_result", fetch.Reason(err))
		c.logger.Printf("analysis result manifest for %s unavailable: %v", activity.ID, err)
		return []domain.AnalysisResultData{}, nil
	}

	accepted, rejected := wire.AnalysisDownloads(manifest)
	for _, rejectErr := range rejected {
		observability.RecordFetchDropped("analysis_result", "decode")
		c.logger.Printf("dropped analysis result entry for %s: %v", activity.ID, rejectErr)
	}

	var downloads []wire.AnalysisDownload
	seen := make(map[domain.AnalysisResultDataType]bool, len(wanted))
	for _, d := range accepted {
		if wanted[d.Type] && !seen[d.Type] {
			seen[d.Type] = true
			downloads = append(downloads, d)
		}
	}

	items, err := fetch.All(ctx, c.fetcher, "analysis_result", downloads, func(ctx context.Context, d wire.AnalysisDownload) ([]byte, error) {
		return c.transport.Download(ctx, "download_analysis_result", d.URL)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.AnalysisResultData, 0, len(items))
	for _, item := range items {
		out = append(out, domain.AnalysisResultData{Type: item.Key.Type, Data: item.Data})
	}
	return out, nil
}

func uniqueResultTypes(types []domain.ResultDataType) []domain.ResultDataType {
	seen := make(map[domain.ResultDataType]bool, len(types))
	out := make([]domain.ResultDataType, 0, len(types))
	for _, t := range types {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// resultMedia picks the media link holding t's source file. A tag may carry several
// files, so one whose extension matches the source format is preferred.
func resultMedia(activity domain.Activity, t domain.ResultDataType) string {
	var fallback string
	want := "." + string(t.SourceFormat())
	for _, r := range activity.ResultsTagged(t.Tag()) {
		if r.MediaURL == nil {
			continue
		}
		if strings.EqualFold(path.Ext(stripQuery(*r.MediaURL)), want) {
			return *r.MediaURL
		}
		if fallback == "" {
			fallback = *r.MediaURL
		}
	}
	return fallback
}

func stripQuery(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		return raw[:i]
	}
	return raw
}
