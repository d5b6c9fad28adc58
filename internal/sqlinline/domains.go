package sqlinline

const QInsertDomain = `--sql 80cf4ab9-4f40-44cf-9d4a-ae3dcc3c7a5d
insert into domains (url, status, created_at, updated_at)
values ($1::text, 'pending', now(), now())
returning id, url, status, created_at, updated_at;
`

const QSelectDomainByID = `--sql 0bd4bd24-5b30-4e42-8c6d-bf0b1e0d43fa
select id, url, status, created_at, updated_at
from domains
where id = $1::bigint;
`

const QListDomains = `--sql 6f0ac3e2-5e22-4a36-9aa4-1c7aa0f8c6c1
select id, url, status, created_at, updated_at
from domains
order by created_at desc, id desc;
`

const QListStuckDomains = `--sql 2a5d1c71-d6d5-4d29-8f1b-84d0d2e9a4e3
select id, url, status, created_at, updated_at
from domains
where status in ('pending', 'processing', 'generating')
  and updated_at < $1::timestamptz
order by updated_at asc, id asc;
`

const QTransitionDomainStatus = `--sql c8e6ae57-1d86-4c56-b7b1-5ef64a0a2f18
update domains
set status = $3::text,
    updated_at = now()
where id = $1::bigint
  and status = $2::text
returning id, url, status, created_at, updated_at;
`

const QResetDomainPending = `--sql c9923e98-0a96-404b-8f6f-dc36c462f19d
update domains
set status = 'pending',
    updated_at = now()
where id = $1::bigint
  and status = $2::text
  and updated_at = $3::timestamptz
returning id, url, status, created_at, updated_at;
`

const QDeleteDomain = `--sql f1b7dc4e-3a84-4b4b-9a43-0e7e85c5d917
delete from domains
where id = $1::bigint;
`
