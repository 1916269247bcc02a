package sqlinline

const QSelectSystemConfig = `--sql 3c1f5b0e-92a4-4d1b-bc7e-5d0f2a7e81c4
select config_value
from system_configs
where config_key = $1::text
limit 1;
`

const QUpsertSystemConfig = `--sql 9e27d4a1-6b3c-4f8e-a0d5-c4b19f7e2d60
insert into system_configs (config_key, config_value, created_at, updated_at)
values ($1::text, $2::text, now(), now())
on conflict (config_key) do update set
    config_value = excluded.config_value,
    updated_at = now();
`
