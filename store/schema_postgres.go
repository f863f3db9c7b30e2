package store

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS robots (
    name        TEXT PRIMARY KEY,
    fleet       TEXT NOT NULL,
    model       TEXT NOT NULL DEFAULT '',
    map_name    TEXT NOT NULL DEFAULT '',
    x           DOUBLE PRECISION NOT NULL DEFAULT 0,
    y           DOUBLE PRECISION NOT NULL DEFAULT 0,
    yaw         DOUBLE PRECISION NOT NULL DEFAULT 0,
    battery_soc DOUBLE PRECISION NOT NULL DEFAULT 0,
    mode        TEXT NOT NULL DEFAULT '',
    command_id  BIGINT NOT NULL DEFAULT 0,
    waypoint    INTEGER NOT NULL DEFAULT -1,
    placed      BOOLEAN NOT NULL DEFAULT FALSE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS closed_lanes (
    fleet       TEXT NOT NULL,
    lane        INTEGER NOT NULL,
    closed_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (fleet, lane)
);

CREATE TABLE IF NOT EXISTS lane_history (
    id          BIGSERIAL PRIMARY KEY,
    fleet       TEXT NOT NULL,
    lane        INTEGER NOT NULL,
    action      TEXT NOT NULL,
    actor       TEXT NOT NULL DEFAULT 'system',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_lane_history_fleet ON lane_history(fleet, id);

CREATE TABLE IF NOT EXISTS outbox (
    id          BIGSERIAL PRIMARY KEY,
    topic       TEXT NOT NULL,
    payload     BYTEA NOT NULL,
    msg_type    TEXT NOT NULL DEFAULT '',
    node_id     TEXT NOT NULL DEFAULT '',
    retries     INTEGER NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    sent_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at) WHERE sent_at IS NULL;

CREATE TABLE IF NOT EXISTS audit_log (
    id          BIGSERIAL PRIMARY KEY,
    entity_type TEXT NOT NULL,
    entity      TEXT NOT NULL DEFAULT '',
    action      TEXT NOT NULL,
    old_value   TEXT NOT NULL DEFAULT '',
    new_value   TEXT NOT NULL DEFAULT '',
    actor       TEXT NOT NULL DEFAULT 'system',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity);

CREATE TABLE IF NOT EXISTS admin_users (
    id            BIGSERIAL PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
