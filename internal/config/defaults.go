package config

// DefaultYAML is written to configs/config.yaml on first start when no file exists.
const DefaultYAML = `server:
  port: ":8080"
  mode: "debug"
  read_timeout: 30s
  write_timeout: 30s
  max_upload_bytes: 10485760
  public_url: "http://localhost:8080"

database:
  host: "localhost"
  port: 5432
  user: "social"
  password: "social"
  dbname: "social_feed"
  sslmode: "disable"
  max_open_conns: 50
  max_idle_conns: 10
  log_sql: false

redis:
  host: "localhost"
  port: 6379
  password: ""
  db: 0
  pool_size: 50
  min_idle_conns: 5

kafka:
  brokers:
    - "localhost:9092"
  topics:
    user_events: "user-events"
    feed_events: "feed-events"
    mail_jobs: "mail-jobs"

jwt:
  secret: "change-me"
  access_expire_time: 15m
  refresh_expire_time: 168h
  reset_expire_time: 10m

feed:
  default_page_size: 20
  max_page_size: 100
  cache_ttl: 5m
  cache_enabled: true

elasticsearch:
  addresses:
    - "http://localhost:9200"
  index_users: "users"
  batch_size: 50
  search_limit: 20

storage:
  type: "local"
  local:
    base_path: "uploads"
  s3:
    endpoint: ""
    region: "us-east-1"
    bucket: "social-feed-images"
    access_key_id: ""
    secret_access_key: ""
    use_path_style: true

mail:
  host: "localhost"
  port: 1025
  username: ""
  password: ""
  from: "noreply@social-feed.local"
  ssl: false
  frontend_url: "http://localhost:3000"
  max_retries: 5
  max_interval: 1h

log:
  level: "info"
`
