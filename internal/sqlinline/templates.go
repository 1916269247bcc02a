package sqlinline

const QSelectTemplateByID = `--sql 5b8d2e7f-1a4c-4c3e-9f60-2e7b8a1d4c95
select id, group_type, face_type, coalesce(pair_key, ''), image_url,
       coalesce(masked_image_url, ''), coalesce(region_cache_url, '')
from photo_templates
where id = $1::bigint
  and deleted_at is null
limit 1;
`

const QSelectTemplateSibling = `--sql d4a96c13-7e2b-4b5f-8c0a-61f3e9b2d7a8
select id, group_type, face_type, coalesce(pair_key, ''), image_url,
       coalesce(masked_image_url, ''), coalesce(region_cache_url, '')
from photo_templates
where pair_key = $1::text
  and group_type = $2::int
  and face_type = $3::text
  and id <> $4::bigint
  and deleted_at is null
order by sort_order asc, id asc
limit 1;
`
