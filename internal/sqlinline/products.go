package sqlinline

const QSelectProductByID = `--sql 4c3b2b93-9b6e-4d11-a2c2-7f1f6a3b8d2e
select id, domain_id, title, description, url, images,
       video_status, video_url, video_task_id,
       publish_status, publish_id, publish_url,
       created_at, updated_at
from products
where id = $1::bigint;
`

const QListProducts = `--sql 93d27c1e-7f05-4a8a-8f5e-2b1d6c0e4a79
select id, domain_id, title, description, url, images,
       video_status, video_url, video_task_id,
       publish_status, publish_id, publish_url,
       created_at, updated_at
from products
order by id asc;
`

const QListProductsByDomain = `--sql 5e8a0f61-2c47-4b8e-9d3a-6a1f0b7c2d84
select id, domain_id, title, description, url, images,
       video_status, video_url, video_task_id,
       publish_status, publish_id, publish_url,
       created_at, updated_at
from products
where domain_id = $1::bigint
order by id asc;
`

// QInsertProducts inserts every element of a JSON array in one statement so
// the batch is all-or-nothing.
const QInsertProducts = `--sql d7a4e2c9-81f3-4b6d-a0e5-3c9b8f1d2a46
with incoming as (
    select r.title, r.description, r.url, r.images, r.ord
    from rows from (
        jsonb_to_recordset($2::jsonb) as (title text, description text, url text, images jsonb)
    ) with ordinality as r(title, description, url, images, ord)
),
inserted as (
    insert into products (domain_id, title, description, url, images, video_status, publish_status, created_at, updated_at)
    select $1::bigint, title, coalesce(description, ''), url, images, 'unavailable', 'not_published', now(), now()
    from incoming
    order by ord
    returning id, domain_id, title, description, url, images,
              video_status, video_url, video_task_id,
              publish_status, publish_id, publish_url,
              created_at, updated_at
)
select * from inserted order by id asc;
`

const QDeleteProduct = `--sql 1f6c9e3b-0d8a-4e72-b5c4-8a2e7d9f3b10
delete from products
where id = $1::bigint;
`

const QDeleteProductsByDomain = `--sql 7b2e5d8f-4a1c-4c39-8e6b-0d9f3a7c1e52
delete from products
where domain_id = $1::bigint;
`

const QClaimProductVideo = `--sql e3a9c5d1-6b2f-4f87-9c0a-5d4e8b1f7a23
update products
set video_status = 'processing',
    video_task_id = null,
    updated_at = now()
where id = $1::bigint
  and video_status <> 'processing'
  and publish_status not in ('publishing', 'published')
  and jsonb_array_length(images) > 0
returning id, domain_id, title, description, url, images,
          video_status, video_url, video_task_id,
          publish_status, publish_id, publish_url,
          created_at, updated_at;
`

const QUpdateProductVideo = `--sql 2c8f1a6e-9d3b-4e5a-b7c2-4f0e6d1a9b38
update products
set video_status = coalesce($2::text, video_status),
    video_url = coalesce($3::text, video_url),
    video_task_id = coalesce($4::text, video_task_id),
    updated_at = now()
where id = $1::bigint
returning id, domain_id, title, description, url, images,
          video_status, video_url, video_task_id,
          publish_status, publish_id, publish_url,
          created_at, updated_at;
`

const QApplyProductVideoResult = `--sql 6a0d4f2b-8e1c-4b93-a5f7-1c3e9d8b2a64
update products
set video_status = $3::text,
    video_url = coalesce($4::text, video_url),
    updated_at = now()
where id = $1::bigint
  and video_task_id = $2::text
  and video_status = 'processing'
returning id, domain_id, title, description, url, images,
          video_status, video_url, video_task_id,
          publish_status, publish_id, publish_url,
          created_at, updated_at;
`

const QClaimProductPublish = `--sql 9e5b3c7a-2f4d-4a18-8b6e-7d0c1f5a3e92
update products
set publish_status = 'publishing',
    updated_at = now()
where id = $1::bigint
  and video_status = 'finish'
  and coalesce(video_url, '') <> ''
  and publish_status <> 'publishing'
  and not (publish_status = 'published' and coalesce(publish_id, '') <> '')
returning id, domain_id, title, description, url, images,
          video_status, video_url, video_task_id,
          publish_status, publish_id, publish_url,
          created_at, updated_at;
`

const QUpdateProductPublish = `--sql 4d7e2a9c-5b1f-4c6e-8a3d-9f2b0e7c1d45
update products
set publish_status = coalesce($2::text, publish_status),
    publish_id = coalesce($3::text, publish_id),
    publish_url = coalesce($4::text, publish_url),
    updated_at = now()
where id = $1::bigint
returning id, domain_id, title, description, url, images,
          video_status, video_url, video_task_id,
          publish_status, publish_id, publish_url,
          created_at, updated_at;
`
