package corpus

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultSearchEndpoint is the SharePoint client service of the São Paulo
	// state tax legislation portal.
	DefaultSearchEndpoint = "https://legislacao.fazenda.sp.gov.br/_vti_bin/client.svc/ProcessQuery"

	defaultFetchTimeout = 30 * time.Second
	defaultRowLimit     = 30
	maxResponseBytes    = 32 << 20
)

// FetcherConfig configures the legislation portal client.
type FetcherConfig struct {
	Endpoint string
	Timeout  time.Duration
	// RowLimit caps the number of result rows requested per search.
	RowLimit int
	// MinInterval is the minimum time between two requests.
	MinInterval time.Duration
	// RequestDigest is forwarded as X-RequestDigest when set.
	RequestDigest string
}

// Fetcher queries the legislation portal search service.
type Fetcher struct {
	cfg     FetcherConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewFetcher creates a portal client.
func NewFetcher(cfg FetcherConfig, logger *zap.Logger) *Fetcher {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultSearchEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultFetchTimeout
	}
	if cfg.RowLimit <= 0 {
		cfg.RowLimit = defaultRowLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	return &Fetcher{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Search runs a portal search for term and returns the parsed pages.
func (f *Fetcher) Search(ctx context.Context, term string) ([]Page, error) {
	body, err := f.Fetch(ctx, term)
	if err != nil {
		return nil, err
	}
	pages, err := ParseSharePoint(body)
	if err != nil {
		return nil, fmt.Errorf("parsing search response for %q: %w", term, err)
	}
	f.logger.Info("legislation search completed", zap.String("term", term), zap.Int("pages", len(pages)))
	return pages, nil
}

// Fetch posts the search request and returns the raw response body.
func (f *Fetcher) Fetch(ctx context.Context, term string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	payload, err := searchRequestBody(term, f.cfg.RowLimit)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if f.cfg.RequestDigest != "" {
		req.Header.Set("X-RequestDigest", f.cfg.RequestDigest)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	f.logger.Debug("legislation search response",
		zap.String("term", term),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)),
	)
	return body, nil
}

// searchRequestBody renders the ProcessQuery envelope for a keyword query.
func searchRequestBody(term string, rowLimit int) ([]byte, error) {
	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(term)); err != nil {
		return nil, fmt.Errorf("escaping search term: %w", err)
	}
	q := escaped.String()

	return []byte(fmt.Sprintf(`<Request xmlns="http://schemas.microsoft.com/sharepoint/clientquery/2009" SchemaVersion="15.0.0.0" LibraryVersion="16.0.0.0" ApplicationName="Javascript Library">`+
		`<Actions>`+
		`<ObjectPath Id="95" ObjectPathId="94" />`+
		`<SetProperty Id="97" ObjectPathId="94" Name="QueryText"><Parameter Type="String">%s</Parameter></SetProperty>`+
		`<SetProperty Id="98" ObjectPathId="94" Name="QueryTemplate"><Parameter Type="String">{searchboxquery} PublishingPageLayoutOWSURLH:&quot;PesqLegisManterAto&quot; OR TipoOWSCHCS:&quot;Leis Complementares Federais&quot; OR TipoOWSCHCS:&quot;Respostas de Consultas&quot;</Parameter></SetProperty>`+
		`<SetProperty Id="99" ObjectPathId="94" Name="Culture"><Parameter Type="Number">1046</Parameter></SetProperty>`+
		`<SetProperty Id="100" ObjectPathId="94" Name="RowsPerPage"><Parameter Type="Number">%d</Parameter></SetProperty>`+
		`<SetProperty Id="101" ObjectPathId="94" Name="RowLimit"><Parameter Type="Number">%d</Parameter></SetProperty>`+
		`<SetProperty Id="103" ObjectPathId="94" Name="SourceId"><Parameter Type="Guid">{8413cd39-2156-4e00-b54d-11efd9abdb89}</Parameter></SetProperty>`+
		`<SetProperty Id="117" ObjectPathId="94" Name="TrimDuplicates"><Parameter Type="Boolean">false</Parameter></SetProperty>`+
		`<SetProperty Id="122" ObjectPathId="94" Name="ClientType"><Parameter Type="String">UI</Parameter></SetProperty>`+
		`<ObjectPath Id="130" ObjectPathId="129" />`+
		`<ExceptionHandlingScope Id="131"><TryScope Id="133"><Method Name="ExecuteQueries" Id="135" ObjectPathId="129"><Parameters>`+
		`<Parameter Type="Array"><Object Type="String">dae87cb5-3265-470f-a15e-f0162a26a113Default</Object></Parameter>`+
		`<Parameter Type="Array"><Object ObjectPathId="94" /></Parameter>`+
		`<Parameter Type="Boolean">true</Parameter>`+
		`</Parameters></Method></TryScope><CatchScope Id="137" /></ExceptionHandlingScope>`+
		`</Actions>`+
		`<ObjectPaths><Constructor Id="94" TypeId="{80173281-fffd-47b6-9a49-312e06ff8428}" /><Constructor Id="129" TypeId="{8d2ac302-db2f-46fe-9015-872b35f15098}" /></ObjectPaths>`+
		`</Request>`, q, rowLimit, rowLimit)), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
