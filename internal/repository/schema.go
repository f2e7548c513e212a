package repository

// Schema creates the market, premises and geoname tables.
const Schema = `
CREATE TABLE IF NOT EXISTS premises (
	id BIGSERIAL PRIMARY KEY,
	geoname_id BIGINT
);

CREATE TABLE IF NOT EXISTS geoname (
	id BIGSERIAL PRIMARY KEY,
	premises_id BIGINT REFERENCES premises (id),
	fuzzy NUMERIC(2, 1),
	geoname_id BIGINT NOT NULL,
	admin_code1 VARCHAR(2),
	admin_code2 VARCHAR(3)
);

DO $$
BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_premises_geoname') THEN
		ALTER TABLE premises ADD CONSTRAINT fk_premises_geoname FOREIGN KEY (geoname_id) REFERENCES geoname (id);
	END IF;
END $$;

CREATE TABLE IF NOT EXISTS market (
	id BIGSERIAL PRIMARY KEY,
	source VARCHAR(8) NOT NULL,
	source_id TEXT,
	row_group BIGINT,
	name TEXT,
	address TEXT,
	po TEXT,
	city TEXT,
	state TEXT,
	zip VARCHAR(5),
	zip_ext VARCHAR(4),
	premises_id BIGINT REFERENCES premises (id)
);

CREATE INDEX IF NOT EXISTS market_premises_idx ON market (premises_id);
CREATE INDEX IF NOT EXISTS market_state_city_idx ON market (state, city);
CREATE INDEX IF NOT EXISTS geoname_geoname_id_idx ON geoname (geoname_id);
`
