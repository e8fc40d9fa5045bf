package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/olivere/elastic/v7"

	"github.com/example/donor-finder/internal/models"
)

const donorMapping = `{
	"settings": {"number_of_shards": 1},
	"mappings": {
		"properties": {
			"id":           {"type": "keyword"},
			"name":         {"type": "text"},
			"nameLower":    {"type": "keyword"},
			"bloodType":    {"type": "keyword"},
			"city":         {"type": "text"},
			"cityLower":    {"type": "keyword"},
			"contact":      {"type": "keyword", "index": false},
			"age":          {"type": "integer"},
			"available":    {"type": "boolean"},
			"lastDonation": {"type": "keyword", "index": false},
			"lat":          {"type": "double"},
			"lng":          {"type": "double"},
			"location":     {"type": "geo_point"},
			"distance":     {"type": "keyword", "index": false},
			"createdAt":    {"type": "date"}
		}
	}
}`

// elasticDoc is the indexed form of a donor. The lowercase copies back
// case-insensitive substring search.
type elasticDoc struct {
	models.Donor
	NameLower string            `json:"nameLower"`
	CityLower string            `json:"cityLower"`
	Location  *elastic.GeoPoint `json:"location,omitempty"`
}

type ElasticStore struct {
	Client *elastic.Client
	Index  string
	url    string
}

func NewElasticStore(ctx context.Context, url, index string) (*ElasticStore, error) {
	client, err := elastic.NewClient(elastic.SetURL(url), elastic.SetSniff(false))
	if err != nil {
		return nil, fmt.Errorf("elastic client: %w", err)
	}
	es := &ElasticStore{Client: client, Index: index, url: url}
	if err := es.ensureIndex(ctx); err != nil {
		client.Stop()
		return nil, err
	}
	return es, nil
}

func (es *ElasticStore) ensureIndex(ctx context.Context) error {
	exists, err := es.Client.IndexExists(es.Index).Do(ctx)
	if err != nil {
		return fmt.Errorf("check index %s: %w", es.Index, err)
	}
	if exists {
		return nil
	}
	created, err := es.Client.CreateIndex(es.Index).BodyString(donorMapping).Do(ctx)
	if err != nil {
		return fmt.Errorf("create index %s: %w", es.Index, err)
	}
	if !created.Acknowledged {
		return fmt.Errorf("create index %s: not acknowledged", es.Index)
	}
	return nil
}

func (es *ElasticStore) CreateDonor(ctx context.Context, d *models.Donor) error {
	prepare(d)
	_, err := es.Client.Index().
		Index(es.Index).
		Id(d.ID).
		OpType("create").
		BodyJson(toElasticDoc(*d)).
		Refresh("wait_for").
		Do(ctx)
	if err != nil {
		return fmt.Errorf("index donor: %w", err)
	}
	return nil
}

func (es *ElasticStore) ListDonors(ctx context.Context, f models.DonorFilter) ([]models.Donor, error) {
	f, err := normalizeFilter(f)
	if err != nil {
		return nil, err
	}
	res, err := es.Client.Search().
		Index(es.Index).
		Query(buildElasticQuery(f)).
		SortBy(listingSorters()...).
		Size(f.Limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("search donors: %w", err)
	}
	out := make([]models.Donor, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		d, err := fromSource(hit.Source)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (es *ElasticStore) GetDonors(ctx context.Context, ids []string) ([]models.Donor, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	mget := es.Client.Mget()
	for _, id := range ids {
		mget = mget.Add(elastic.NewMultiGetItem().Index(es.Index).Id(id))
	}
	res, err := mget.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("mget donors: %w", err)
	}
	out := make([]models.Donor, 0, len(res.Docs))
	for _, doc := range res.Docs {
		if doc == nil || !doc.Found {
			continue
		}
		d, err := fromSource(doc.Source)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (es *ElasticStore) Ping(ctx context.Context) error {
	_, _, err := es.Client.Ping(es.url).Do(ctx)
	return err
}

func (es *ElasticStore) Close() error {
	es.Client.Stop()
	return nil
}

// buildElasticQuery expects a normalized filter.
func buildElasticQuery(f models.DonorFilter) elastic.Query {
	q := elastic.NewBoolQuery()
	if f.BloodType != "" {
		q = q.Filter(elastic.NewTermQuery("bloodType", string(f.BloodType)))
	}
	if f.Search != "" {
		pattern := "*" + escapeWildcard(strings.ToLower(f.Search)) + "*"
		q = q.Filter(elastic.NewBoolQuery().
			Should(
				elastic.NewWildcardQuery("cityLower", pattern),
				elastic.NewWildcardQuery("nameLower", pattern),
			).
			MinimumNumberShouldMatch(1))
	}
	return q
}

func listingSorters() []elastic.Sorter {
	return []elastic.Sorter{
		elastic.NewFieldSort("available").Desc(),
		elastic.NewFieldSort("createdAt").Desc(),
		elastic.NewFieldSort("id").Desc(),
	}
}

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

func escapeWildcard(s string) string { return wildcardEscaper.Replace(s) }

func toElasticDoc(d models.Donor) elasticDoc {
	doc := elasticDoc{
		Donor:     d,
		NameLower: strings.ToLower(d.Name),
		CityLower: strings.ToLower(d.City),
	}
	if d.HasPosition() {
		doc.Location = elastic.GeoPointFromLatLon(*d.Lat, *d.Lng)
	}
	return doc
}

func fromSource(src json.RawMessage) (models.Donor, error) {
	var doc elasticDoc
	if err := json.Unmarshal(src, &doc); err != nil {
		return models.Donor{}, fmt.Errorf("decode donor document: %w", err)
	}
	return doc.Donor, nil
}
