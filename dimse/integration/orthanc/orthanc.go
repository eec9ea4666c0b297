// Package orthanc stands up a real Orthanc PACS in a container for the
// integration suite: a DIMSE peer on 4242 and its REST API on 8042.
package orthanc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// OrthancContainer is one running Orthanc instance with its mapped
// DICOM and HTTP endpoints.
type OrthancContainer struct {
	Container testcontainers.Container
	DICOMHost string
	DICOMPort string
	HTTPHost  string
	HTTPPort  string
}

// StartOrthanc launches the container and waits for its REST API.
// Authentication is off and echo/store are always allowed so tests can
// drive it without per-peer registration.
func StartOrthanc(ctx context.Context) (*OrthancContainer, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "orthancteam/orthanc:latest",
			ExposedPorts: []string{"4242/tcp", "8042/tcp"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("8042/tcp"),
				wait.ForHTTP("/system").WithPort("8042/tcp").WithStartupTimeout(60*time.Second),
			),
			Env: map[string]string{
				"ORTHANC__DICOM_AET":                  "ORTHANC",
				"ORTHANC__DICOM_CHECK_CALLED_AET":     "false",
				"ORTHANC__AUTHENTICATION_ENABLED":     "false",
				"ORTHANC__DICOM_ALWAYS_ALLOW_ECHO":    "true",
				"ORTHANC__DICOM_ALWAYS_ALLOW_STORE":   "true",
				"ORTHANC__REMOTE_ACCESS_ALLOWED":      "true",
				"ORTHANC__UNKNOWN_SOP_CLASS_ACCEPTED": "true",
			},
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Orthanc container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	dicomPort, err := container.MappedPort(ctx, "4242")
	if err != nil {
		return nil, fmt.Errorf("failed to get DICOM port: %w", err)
	}
	httpPort, err := container.MappedPort(ctx, "8042")
	if err != nil {
		return nil, fmt.Errorf("failed to get HTTP port: %w", err)
	}

	return &OrthancContainer{
		Container: container,
		DICOMHost: host,
		DICOMPort: dicomPort.Port(),
		HTTPHost:  host,
		HTTPPort:  httpPort.Port(),
	}, nil
}

// Stop terminates the container.
func (oc *OrthancContainer) Stop(ctx context.Context) error {
	if oc.Container == nil {
		return nil
	}
	return oc.Container.Terminate(ctx)
}

// DICOMAddress is the host:port the SCU dials.
func (oc *OrthancContainer) DICOMAddress() string {
	return fmt.Sprintf("%s:%s", oc.DICOMHost, oc.DICOMPort)
}

// HTTPBaseURL is the REST API root.
func (oc *OrthancContainer) HTTPBaseURL() string {
	return fmt.Sprintf("http://%s:%s", oc.HTTPHost, oc.HTTPPort)
}

// rest performs one REST call against the container, decoding a JSON
// response into out when out is non-nil.
func (oc *OrthancContainer) rest(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s %s payload: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, oc.HTTPBaseURL()+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: unexpected status %d: %s", method, path, resp.StatusCode, raw)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s %s response: %w", method, path, err)
		}
	}
	return nil
}

// GetInstances lists every stored instance id.
func (oc *OrthancContainer) GetInstances(ctx context.Context) ([]string, error) {
	var instances []string
	if err := oc.rest(ctx, http.MethodGet, "/instances", nil, &instances); err != nil {
		return nil, err
	}
	return instances, nil
}

// GetStudies lists every stored study id.
func (oc *OrthancContainer) GetStudies(ctx context.Context) ([]string, error) {
	var studies []string
	if err := oc.rest(ctx, http.MethodGet, "/studies", nil, &studies); err != nil {
		return nil, err
	}
	return studies, nil
}

// DeleteAllContent wipes the PACS between tests.
func (oc *OrthancContainer) DeleteAllContent(ctx context.Context) error {
	instances, err := oc.GetInstances(ctx)
	if err != nil {
		return err
	}
	for _, id := range instances {
		if err := oc.rest(ctx, http.MethodDelete, "/instances/"+id, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

// ConfigureModality registers a peer AE so Orthanc can C-MOVE to it.
func (oc *OrthancContainer) ConfigureModality(ctx context.Context, aet, host string, port int) error {
	return oc.rest(ctx, http.MethodPut, "/modalities/"+aet, map[string]any{
		"AET":  aet,
		"Host": host,
		"Port": port,
	}, nil)
}

// SendToModality pushes a stored instance to a registered peer.
func (oc *OrthancContainer) SendToModality(ctx context.Context, modality, instanceID string) error {
	return oc.rest(ctx, http.MethodPost, "/modalities/"+modality+"/store", []string{instanceID}, nil)
}
