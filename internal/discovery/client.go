package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"streetscan/internal/models"
	"streetscan/pkg/streetview"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/js/GeoPhotoService.SingleImageSearch"

// searchPayload is the pb query payload with the sample coordinate embedded.
// The surrounding structure selects a 50 m search radius around the point.
const searchPayload = "!1m5!1sapiv3!5sUS!11m2!1m1!1b0!2m4!1m2!3d%f!4d%f!2d50!3m10!2m2!1sen!2sGB!9m1!1e2!11m4!1m3!1e2!2b1!3e2!4m10!1e1!1e2!1e3!1e4!1e8!1e6!5m1!1e2!6m1!1e2"

// Client performs single-image-search lookups against the remote panorama
// index. Any non-200 response or unparseable body is reported as an error;
// the Service decides whether and how to retry.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

func NewClient() *Client {
	return &Client{
		httpClient: http.DefaultClient,
		baseURL:    defaultBaseURL,
		userAgent:  "streetscan/1.0",
	}
}

// Search returns the panorama records reported near the given coordinate.
// Zero records with a nil error means the point simply has no coverage.
func (c *Client) Search(ctx context.Context, point models.Coordinate) ([]models.Panorama, error) {
	url := fmt.Sprintf("%s?pb=%s&callback=_xdc_._v2mub5",
		c.baseURL, fmt.Sprintf(searchPayload, point.Lat, point.Lon))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return streetview.PanoidsFromResponse(string(body)), nil
}
